package models

import "time"

// RefreshToken is the persisted half of a session. The row keeps its ID
// and CreatedAt across rotations; Token and ExpiresAt are replaced.
type RefreshToken struct {
	ID        int64     `db:"id"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	UserID    int64     `db:"user_id"`
}

// Expired reports whether the token is no longer usable at now.
// A token whose expiry equals now is already expired.
func (r *RefreshToken) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
