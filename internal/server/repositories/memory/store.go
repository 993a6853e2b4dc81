package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type store struct {
	mu  sync.RWMutex
	now func() time.Time

	nextUserID  int64
	nextTokenID int64
	users       map[int64]models.User
	tokens      map[int64]models.RefreshToken
}

func newStore() *store {
	return &store{
		now:    time.Now,
		users:  make(map[int64]models.User),
		tokens: make(map[int64]models.RefreshToken),
	}
}

type userRepo struct {
	s *store
}

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}

	r.s.nextUserID++
	user.ID = r.s.nextUserID
	r.s.users[user.ID] = *user
	return user, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *userRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

type refreshRepo struct {
	s *store
}

func (r *refreshRepo) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var found *models.RefreshToken
	for _, rt := range r.s.tokens {
		if rt.Token != token {
			continue
		}
		if found == nil || rt.ID > found.ID {
			rt := rt
			found = &rt
		}
	}
	if found == nil {
		return nil, common.ErrorNotFound
	}
	return found, nil
}

func (r *refreshRepo) Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextTokenID++
	r.s.tokens[r.s.nextTokenID] = models.RefreshToken{
		ID:        r.s.nextTokenID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: r.s.now(),
		UserID:    userID,
	}
	return nil
}

func (r *refreshRepo) UpdateByID(ctx context.Context, id int64, currentToken, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rt, ok := r.s.tokens[id]
	if !ok || rt.Token != currentToken {
		return nil, common.ErrorNotFound
	}

	rt.Token = token
	rt.ExpiresAt = expiresAt
	r.s.tokens[id] = rt
	return &rt, nil
}

func (r *refreshRepo) DeleteByToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, rt := range r.s.tokens {
		if rt.Token == token {
			delete(r.s.tokens, id)
		}
	}
	return nil
}

func (r *refreshRepo) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.tokens, id)
	return nil
}

func (r *refreshRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, rt := range r.s.tokens {
		if rt.Expired(now) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}
