package model

import "time"

// Session represents a login session bound to one user and the API key it
// was established from. The raw session token is a bearer secret shown once
// at creation; only its SHA-256 hash is persisted, same as API keys.
//
// A session is valid iff IsActive is true and ExpiresAt is in the future.
// Validity is re-checked on every use, never cached.
type Session struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	TokenHash    string    `json:"-" db:"token_hash"` // SHA-256 hash, never expose
	TokenPrefix  string    `json:"token_prefix" db:"token_prefix"`
	KeyHash      string    `json:"-" db:"key_hash"` // credential the session was established from
	LastActivity time.Time `json:"last_activity" db:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	IPAddress    *string   `json:"ip_address,omitempty" db:"ip_address"` // audit only
	UserAgent    *string   `json:"user_agent,omitempty" db:"user_agent"` // audit only
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session's expiry has passed at the given time.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}

// Remaining returns the time left until expiry, clamped at zero.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
