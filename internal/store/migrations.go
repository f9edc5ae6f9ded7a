package store

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	var migrations []string
	switch s.db.DriverName() {
	case "pgx":
		migrations = postgresMigrations
	case "mysql":
		migrations = mysqlMigrations
	default:
		migrations = sqliteMigrations
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails if the column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		api_key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		total_requests INTEGER NOT NULL DEFAULT 0,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		token_hash TEXT UNIQUE NOT NULL,
		token_prefix TEXT NOT NULL DEFAULT '',
		key_hash TEXT NOT NULL,
		last_activity DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_api_key_hash ON users(api_key_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_key_hash ON sessions(key_hash, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(is_active, expires_at)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		api_key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		total_requests BIGINT NOT NULL DEFAULT 0,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		token_hash TEXT UNIQUE NOT NULL,
		token_prefix TEXT NOT NULL DEFAULT '',
		key_hash TEXT NOT NULL,
		last_activity TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_users_api_key_hash ON users(api_key_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_key_hash ON sessions(key_hash, is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expiry ON sessions(is_active, expires_at)`,
}

var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		username VARCHAR(190) UNIQUE NOT NULL,
		email VARCHAR(190) UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		api_key_hash CHAR(64) UNIQUE NOT NULL,
		key_prefix VARCHAR(32) NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		total_requests BIGINT NOT NULL DEFAULT 0,
		last_login_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id BIGINT PRIMARY KEY AUTO_INCREMENT,
		user_id BIGINT NOT NULL,
		token_hash CHAR(64) UNIQUE NOT NULL,
		token_prefix VARCHAR(32) NOT NULL DEFAULT '',
		key_hash CHAR(64) NOT NULL,
		last_activity DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		ip_address VARCHAR(64) NULL,
		user_agent VARCHAR(512) NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		INDEX idx_sessions_key_hash (key_hash, is_active),
		INDEX idx_sessions_expiry (is_active, expires_at)
	)`,
}
