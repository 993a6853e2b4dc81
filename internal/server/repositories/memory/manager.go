// Package memory is an in-process RepositoryManager used for development
// (DB_URL=memory://) and tests. State lives for the lifetime of the Manager.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// Manager vends repositories backed by one shared in-memory store. The db
// handles passed to Users and RefreshTokens are ignored.
//
// InTx serializes transactions against each other but does not roll back
// writes made before fn fails.
type Manager struct {
	txMu  sync.Mutex
	store *store
}

type Option func(*store)

// WithClock sets the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *store) {
		s.now = now
	}
}

func NewManager(opts ...Option) *Manager {
	s := newStore()
	for _, o := range opts {
		o(s)
	}
	return &Manager{store: s}
}

func (m *Manager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *Manager) Users(db dbx.DBTX) users.Repository {
	return &userRepo{s: m.store}
}

func (m *Manager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &refreshRepo{s: m.store}
}

func (m *Manager) InTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, nil)
}
