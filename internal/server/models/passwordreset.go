package models

import "time"

// PasswordReset is a single-use, short-lived capability to set a new password.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

func (r *PasswordReset) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}
