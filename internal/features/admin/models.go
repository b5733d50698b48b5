// Package admin opens staff sessions: a password login guarded against brute
// force that returns an admin bearer token.
package admin

import "time"

const (
	maxFailedAttempts = 3
	lockoutWindow     = time.Hour
	adminSubject      = "admin"
)

// LoginAttempt is one recorded login try.
type LoginAttempt struct {
	ID          int64     `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Email       string    `json:"email"`
	Success     bool      `json:"success"`
	AttemptTime time.Time `json:"attempt_time"`
}

// LoginInput is a staff login request.
type LoginInput struct {
	Email      string `validate:"required,email"`
	Password   string `validate:"required"`
	RemoteAddr string `validate:"required"`
}

// Session is what a successful login returns.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}
