// Package models defines server-side data models persisted in the database.
package models

// User is a registered account. PasswordHash holds the bcrypt digest and
// is never sent to clients.
type User struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}
