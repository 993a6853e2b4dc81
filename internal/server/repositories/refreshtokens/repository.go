// Package refreshtokens declares the refresh token store: the stateful half
// of the session protocol.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists refresh tokens. Each method is a single statement.
type Repository interface {
	// FindByToken returns the newest row holding token, or common.ErrorNotFound.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Create stores a new refresh token row for userID.
	Create(ctx context.Context, userID int64, token string, expiresAt time.Time) error

	// UpdateByID replaces token and expiry of row id, but only while the row
	// still holds currentToken. If the row was rotated or deleted in the
	// meantime it returns common.ErrorNotFound.
	UpdateByID(ctx context.Context, id int64, currentToken, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// DeleteByToken and DeleteByID succeed when nothing matches.
	DeleteByToken(ctx context.Context, token string) error
	DeleteByID(ctx context.Context, id int64) error

	// DeleteExpired removes rows with expires_at <= now and returns how many.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
