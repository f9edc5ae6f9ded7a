package model

import "time"

// User represents a registered account. Each user holds exactly one API key
// at a time; the raw key is returned once at creation or rotation and only
// its SHA-256 hash and a short prefix are persisted.
type User struct {
	ID            int64      `json:"id" db:"id"`
	Username      string     `json:"username" db:"username"`
	Email         string     `json:"email,omitempty" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	APIKeyHash    string     `json:"-" db:"api_key_hash"`  // SHA-256 hash, never expose
	KeyPrefix     string     `json:"key_prefix" db:"key_prefix"` // First chars of the raw key for identification
	IsActive      bool       `json:"is_active" db:"is_active"`
	TotalRequests int64      `json:"total_requests" db:"total_requests"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
