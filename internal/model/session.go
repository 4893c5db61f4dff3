package model

import "time"

// Session is a revocable login. Tokens handed to clients reference it by
// TokenID so logging out invalidates the token before it expires.
type Session struct {
	ID        int64     `json:"id" db:"id"`
	TokenID   string    `json:"-" db:"token_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
