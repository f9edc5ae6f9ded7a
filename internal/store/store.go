package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/quotegate/quotegate/internal/model"
)

// Store is the durable home of users and sessions. It is storage-agnostic
// across SQLite (embedded default), PostgreSQL, and MySQL; all shared state
// lives here so multiple gateway instances can point at the same database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the configured database and runs migrations. Supported
// drivers are "sqlite" (default), "postgres" (via pgx), and "mysql". MySQL
// DSNs must include parseTime=true so DATETIME columns scan into time.Time.
func Open(driver, dsn string) (*Store, error) {
	var driverName string
	switch driver {
	case "", "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	case "mysql":
		driverName = "mysql"
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store database: %w", err)
	}

	if driverName == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

		// Enable foreign keys (off by default in SQLite).
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate store database: %w", err)
	}
	return s, nil
}

// OpenSQLite opens the embedded SQLite store under dataDir. Pass empty
// string for in-memory, which is what the tests use.
func OpenSQLite(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "quotegate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open("sqlite", dsn)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// namedInsert executes a named INSERT and returns the generated row id,
// papering over the LastInsertId vs RETURNING split between drivers.
func (s *Store) namedInsert(ctx context.Context, q string, arg interface{}) (int64, error) {
	if s.db.DriverName() == "pgx" {
		rows, err := s.db.NamedQueryContext(ctx, q+" RETURNING id", arg)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, err
			}
		}
		return id, rows.Err()
	}

	result, err := s.db.NamedExecContext(ctx, q, arg)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// classify maps driver errors onto the store's sentinel errors. Uniqueness
// violations surface differently per engine, so match on message text the
// same way the HTTP layer classifies data errors.
func classify(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate key") ||
		strings.Contains(lower, "duplicate entry") {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// userRow maps 1:1 to the users table. model.User carries email as a plain
// string; the column is nullable so the unique index ignores absent emails.
type userRow struct {
	ID            int64          `db:"id"`
	Username      string         `db:"username"`
	Email         sql.NullString `db:"email"`
	PasswordHash  string         `db:"password_hash"`
	APIKeyHash    string         `db:"api_key_hash"`
	KeyPrefix     string         `db:"key_prefix"`
	IsActive      bool           `db:"is_active"`
	TotalRequests int64          `db:"total_requests"`
	LastLoginAt   *time.Time     `db:"last_login_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func userRowFromModel(u *model.User) userRow {
	return userRow{
		ID:            u.ID,
		Username:      u.Username,
		Email:         sql.NullString{String: u.Email, Valid: u.Email != ""},
		PasswordHash:  u.PasswordHash,
		APIKeyHash:    u.APIKeyHash,
		KeyPrefix:     u.KeyPrefix,
		IsActive:      u.IsActive,
		TotalRequests: u.TotalRequests,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email.String,
		PasswordHash:  r.PasswordHash,
		APIKeyHash:    r.APIKeyHash,
		KeyPrefix:     r.KeyPrefix,
		IsActive:      r.IsActive,
		TotalRequests: r.TotalRequests,
		LastLoginAt:   r.LastLoginAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// CreateUser inserts a new user record. The password and API key hashes must
// already be set. The ID, CreatedAt, and UpdatedAt fields on user are
// populated after a successful insert. Returns ErrDuplicate when the
// username or email is already taken.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	row := userRowFromModel(user)

	const q = `INSERT INTO users
		(username, email, password_hash, api_key_hash, key_prefix, is_active,
		 total_requests, last_login_at, created_at, updated_at)
		VALUES
		(:username, :email, :password_hash, :api_key_hash, :key_prefix, :is_active,
		 :total_requests, :last_login_at, :created_at, :updated_at)`

	id, err := s.namedInsert(ctx, q, row)
	if err != nil {
		return classify(err, "insert user")
	}
	user.ID = id
	return nil
}

// GetUserByID returns a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM users WHERE id = ?"), id); err != nil {
		return nil, classify(err, "get user")
	}
	user := row.toModel()
	return &user, nil
}

// GetUserByUsername returns a user by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM users WHERE username = ?"), username); err != nil {
		return nil, classify(err, "get user by username")
	}
	user := row.toModel()
	return &user, nil
}

// GetUserByKeyHash looks up a user by the SHA-256 hash of its API key.
func (s *Store) GetUserByKeyHash(ctx context.Context, keyHash string) (*model.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM users WHERE api_key_hash = ?"), keyHash); err != nil {
		return nil, classify(err, "get user by key hash")
	}
	user := row.toModel()
	return &user, nil
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM users ORDER BY username"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]model.User, len(rows))
	for i, r := range rows {
		users[i] = r.toModel()
	}
	return users, nil
}

// RotateUserKey atomically replaces a user's API key hash. The old hash stops
// matching the moment this statement commits; there is no window where both
// keys, or neither key, validate.
func (s *Store) RotateUserKey(ctx context.Context, id int64, newHash, newPrefix string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET api_key_hash = ?, key_prefix = ?, updated_at = ? WHERE id = ?"),
		newHash, newPrefix, now, id)
	if err != nil {
		return classify(err, "rotate user key")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate user key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateUserLastLogin sets the last_login_at timestamp for a user.
func (s *Store) UpdateUserLastLogin(ctx context.Context, id int64, loginAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?"),
		loginAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user last login: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user last login rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRequestCount bumps the user's request counter in a single atomic
// update so concurrent requests for the same user never lose increments.
func (s *Store) IncrementRequestCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET total_requests = total_requests + 1 WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("increment request count: %w", err)
	}
	return nil
}

// SetUserActive toggles a user's active flag.
func (s *Store) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?"),
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUsers returns the total number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users"); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
