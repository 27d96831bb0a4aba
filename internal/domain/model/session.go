package model

import "time"

// Session is an authenticated admin session. Only the hash of the bearer
// token is ever persisted.
type Session struct {
	TokenHash string
	Subject   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
