package models

import "time"

// User is an account that owns habits
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionRecord is the stored form of a signed-in session. Only the hash of
// the session token is persisted.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s SessionRecord) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
