// Package services contains server-side business logic. This file implements
// UserService: registration, login, refresh token rotation, logout and
// access token validation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/telemetry"
)

// UserService issues and rotates session tokens.
//
// A refresh token row moves Absent -> Active -> Active (rotated) -> Deleted
// and never comes back once deleted. Rotation is a conditional update on
// (id, token), so two refreshes racing on the same token produce exactly
// one winner without any locking here.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager

	hasher       *auth.PasswordHasher
	accessCodec  *auth.Codec
	refreshCodec *auth.Codec
	accessTTL    time.Duration
	refreshTTL   time.Duration

	limiter   ratelimit.LoginLimiter
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    logging.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*UserService)

func WithLimiter(l ratelimit.LoginLimiter) Option {
	return func(s *UserService) { s.limiter = l }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *UserService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *UserService) { s.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(s *UserService) { s.logger = l }
}

// WithClock replaces time.Now for expiry decisions and token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) (*UserService, error) {
	s := &UserService{
		db:          db,
		repomanager: m,
		hasher:      auth.NewPasswordHasher(cfg.BcryptCost),
		accessTTL:   cfg.AccessTokenValidityDuration,
		refreshTTL:  cfg.RefreshTokenValidityDuration,
		limiter:     ratelimit.Nop{},
		publisher:   events.Nop{},
		logger:      logging.Nop(),
		tracer:      telemetry.Tracer(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "services.user")

	var err error
	if s.accessCodec, err = auth.NewCodec([]byte(cfg.AccessSecret), cfg.Algorithm, auth.WithClock(s.now)); err != nil {
		return nil, fmt.Errorf("access token codec: %w", err)
	}
	if s.refreshCodec, err = auth.NewCodec([]byte(cfg.RefreshSecret), cfg.Algorithm, auth.WithClock(s.now)); err != nil {
		return nil, fmt.Errorf("refresh token codec: %w", err)
	}

	return s, nil
}

// Register creates an account. The email lookup and the insert share one
// transaction; a unique violation from a concurrent insert is reported the
// same way as a duplicate found by the lookup.
func (s *UserService) Register(ctx context.Context, email, password string) (user *models.User, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer func() { s.finish(ctx, span, metrics.OpRegister, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrInvalidInput
	}

	err = s.repomanager.InTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if _, err := repo.GetUserByEmail(ctx, email); err == nil {
			return common.ErrDuplicateEmail
		} else if !errors.Is(err, common.ErrorNotFound) {
			return storageErr(err)
		}

		hash, err := s.hash(password)
		if err != nil {
			return err
		}

		u, err := repo.Create(ctx, &models.User{Email: email, PasswordHash: hash})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrDuplicateEmail
			}
			return storageErr(err)
		}
		user = u
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrDuplicateEmail) &&
			!errors.Is(err, common.ErrInvalidInput) &&
			!errors.Is(err, common.ErrorInternal) {
			err = storageErr(err)
		}
		return nil, err
	}

	s.publish(ctx, events.TypeUserRegistered, user.ID)
	return user, nil
}

// Login verifies credentials and starts a session: exactly one refresh
// token row is created per successful call.
func (s *UserService) Login(ctx context.Context, email, password string) (pair *models.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer func() { s.finish(ctx, span, metrics.OpLogin, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	allowed, lerr := s.limiter.Allow(ctx, email)
	if lerr != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", lerr)
		allowed = true
	}
	if !allowed {
		return nil, common.ErrRateLimited
	}

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, storageErr(err)
		}
		s.timed(func() { s.hasher.VerifyDummy(password) })
		s.recordFailure(ctx, email)
		return nil, common.ErrInvalidCredentials
	}

	var ok bool
	s.timed(func() { ok = s.hasher.Verify(password, user.PasswordHash) })
	if !ok {
		s.recordFailure(ctx, email)
		return nil, common.ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn(ctx, "login limiter reset failed", "error", err)
	}

	pair, expiresAt, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.repomanager.RefreshTokens(s.db).Create(ctx, user.ID, pair.RefreshToken, expiresAt); err != nil {
		return nil, storageErr(err)
	}

	s.publish(ctx, events.TypeSessionStarted, user.ID)
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair, rotating the
// stored row in place. An expired row is deleted and reported as
// ErrTokenExpired; any later attempt with that token gets ErrInvalidToken.
func (s *UserService) Refresh(ctx context.Context, presented string) (pair *models.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Refresh")
	defer func() { s.finish(ctx, span, metrics.OpRefresh, err) }()

	if presented == "" {
		return nil, common.ErrInvalidToken
	}

	claims, err := s.refreshCodec.Decode(presented)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	subject, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	repo := s.repomanager.RefreshTokens(s.db)

	row, err := repo.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, storageErr(err)
	}

	if row.Expired(s.now()) {
		if err := repo.DeleteByID(ctx, row.ID); err != nil {
			return nil, storageErr(err)
		}
		return nil, common.ErrTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, storageErr(err)
	}
	if subject != user.ID {
		return nil, common.ErrInvalidToken
	}

	pair, expiresAt, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := repo.UpdateByID(ctx, row.ID, presented, pair.RefreshToken, expiresAt); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// lost the race against a concurrent refresh or logout
			return nil, common.ErrInvalidToken
		}
		return nil, storageErr(err)
	}

	s.publish(ctx, events.TypeSessionRefreshed, user.ID)
	return pair, nil
}

// Logout ends the session holding presented. Unknown or empty tokens are a
// no-op; only storage failures are returned.
func (s *UserService) Logout(ctx context.Context, presented string) (err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Logout")
	defer func() { s.finish(ctx, span, metrics.OpLogout, err) }()

	if presented == "" {
		return nil
	}

	repo := s.repomanager.RefreshTokens(s.db)

	row, err := repo.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return storageErr(err)
	}

	if err := repo.DeleteByID(ctx, row.ID); err != nil {
		return storageErr(err)
	}

	s.publish(ctx, events.TypeSessionEnded, row.UserID)
	return nil
}

// Authenticate resolves an access token to its user.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (user *models.User, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Authenticate")
	defer func() { s.finish(ctx, span, metrics.OpAuthenticate, err) }()

	if accessToken == "" {
		return nil, common.ErrInvalidToken
	}

	claims, err := s.accessCodec.Decode(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.ExpiredAt(s.now()) {
		return nil, common.ErrTokenExpired
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	user, err = s.repomanager.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, storageErr(err)
	}
	return user, nil
}

// PurgeExpired deletes refresh token rows that are past their expiry.
func (s *UserService) PurgeExpired(ctx context.Context) (n int64, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.PurgeExpired")
	defer func() { s.finish(ctx, span, metrics.OpPurge, err) }()

	n, err = s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storageErr(err)
	}

	span.SetAttributes(attribute.Int64("auth.purged", n))
	if n > 0 {
		s.logger.Info(ctx, "purged expired refresh tokens", "count", n)
	}
	return n, nil
}

// --- helpers below ---

func (s *UserService) issuePair(userID int64) (*models.TokenPair, time.Time, error) {
	expiresAt := s.now().Add(s.refreshTTL)

	access, err := s.accessCodec.Encode(userID, s.accessTTL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	refresh, err := s.refreshCodec.Encode(userID, s.refreshTTL)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, expiresAt, nil
}

func (s *UserService) hash(password string) (hash string, err error) {
	s.timed(func() { hash, err = s.hasher.Hash(password) })
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return hash, nil
}

func (s *UserService) timed(fn func()) {
	start := time.Now()
	fn()
	s.metrics.ObserveHash(time.Since(start))
}

func (s *UserService) recordFailure(ctx context.Context, email string) {
	if err := s.limiter.Fail(ctx, email); err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	}
}

func (s *UserService) publish(ctx context.Context, eventType string, userID int64) {
	e := events.Event{Type: eventType, UserID: userID, At: s.now().UTC()}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "event publish failed", "type", eventType, "error", err)
	}
}

func (s *UserService) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := outcomeOf(err)
	s.metrics.Observe(op, outcome)
	span.SetAttributes(attribute.String("auth.outcome", outcome))

	if outcome == metrics.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, op+" failed", "error", err)
	} else if err != nil {
		s.logger.Debug(ctx, op+" rejected", "outcome", outcome)
	}

	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, common.ErrTokenExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, common.ErrDuplicateEmail):
		return metrics.OutcomeDuplicate
	case errors.Is(err, common.ErrRateLimited):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}

// storageErr tags err as a persistence failure unless it already is one.
func storageErr(err error) error {
	if errors.Is(err, common.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
