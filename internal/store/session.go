package store

import (
	"context"
	"fmt"
	"time"

	"github.com/quotegate/quotegate/internal/model"
)

// Session queries never filter on expires_at: expiry is a policy decision
// re-checked by the verifier on every call, and SweepExpiredSessions is the
// only place the store itself reasons about time.

// CreateSession inserts a new session record. The token hash, key hash,
// last-activity, and expiry must already be set by the caller. The ID and
// CreatedAt fields on sess are populated after a successful insert.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	sess.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO sessions
		(user_id, token_hash, token_prefix, key_hash, last_activity, expires_at,
		 is_active, ip_address, user_agent, created_at)
		VALUES
		(:user_id, :token_hash, :token_prefix, :key_hash, :last_activity, :expires_at,
		 :is_active, :ip_address, :user_agent, :created_at)`

	id, err := s.namedInsert(ctx, q, sess)
	if err != nil {
		return classify(err, "insert session")
	}
	sess.ID = id
	return nil
}

// GetActiveSessionByTokenHash looks up an active session by the SHA-256 hash
// of its token. Deactivated sessions are invisible here, so a logged-out
// token reads the same as one that never existed.
func (s *Store) GetActiveSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		s.db.Rebind("SELECT * FROM sessions WHERE token_hash = ? AND is_active = ?"), tokenHash, true)
	if err != nil {
		return nil, classify(err, "get session by token hash")
	}
	return &sess, nil
}

// GetActiveSessionByKeyHash returns the active session established from the
// given API key hash, if any. Under the sliding profile at most one exists.
func (s *Store) GetActiveSessionByKeyHash(ctx context.Context, keyHash string) (*model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		s.db.Rebind(`SELECT * FROM sessions WHERE key_hash = ? AND is_active = ?
			ORDER BY expires_at DESC LIMIT 1`), keyHash, true)
	if err != nil {
		return nil, classify(err, "get session by key hash")
	}
	return &sess, nil
}

// RefreshSessionByKeyHash extends the active session for a credential in a
// single atomic update. Returns false when no active session exists, in
// which case the caller creates one — together the two form the upsert.
func (s *Store) RefreshSessionByKeyHash(ctx context.Context, keyHash string, lastActivity, expiresAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE sessions SET last_activity = ?, expires_at = ? WHERE key_hash = ? AND is_active = ?"),
		lastActivity, expiresAt, keyHash, true)
	if err != nil {
		return false, fmt.Errorf("refresh session by key hash: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refresh session rows affected: %w", err)
	}
	return n > 0, nil
}

// TouchSessionByTokenHash extends a single session's expiry and last-activity
// in place, the sliding-expiration refresh for token-authenticated calls.
func (s *Store) TouchSessionByTokenHash(ctx context.Context, tokenHash string, lastActivity, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token_hash = ? AND is_active = ?"),
		lastActivity, expiresAt, tokenHash, true)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// DeactivateSessionByTokenHash marks a session inactive, reporting whether a
// matching active session existed. Calling it twice returns false the
// second time.
func (s *Store) DeactivateSessionByTokenHash(ctx context.Context, tokenHash string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE sessions SET is_active = ? WHERE token_hash = ? AND is_active = ?"),
		false, tokenHash, true)
	if err != nil {
		return false, fmt.Errorf("deactivate session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate session rows affected: %w", err)
	}
	return n > 0, nil
}

// DeactivateSessionsByKeyHash marks every active session established from the
// given credential as inactive. Login under the sliding profile supersedes
// the key's live session through this before creating the replacement.
func (s *Store) DeactivateSessionsByKeyHash(ctx context.Context, keyHash string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE sessions SET is_active = ? WHERE key_hash = ? AND is_active = ?"),
		false, keyHash, true)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions by key hash: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions rows affected: %w", err)
	}
	return n, nil
}

// SweepExpiredSessions marks every session whose expiry has passed as
// inactive and returns how many were deactivated. The transition is
// monotonic and idempotent, so the sweep is safe to run concurrently with
// normal verification.
func (s *Store) SweepExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE sessions SET is_active = ? WHERE is_active = ? AND expires_at < ?"),
		false, true, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions rows affected: %w", err)
	}
	return n, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	var sessions []model.Session
	err := s.db.SelectContext(ctx, &sessions,
		s.db.Rebind("SELECT * FROM sessions ORDER BY created_at DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// CountActiveSessions returns the number of sessions currently flagged
// active, reported by the health endpoint.
func (s *Store) CountActiveSessions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		s.db.Rebind("SELECT COUNT(*) FROM sessions WHERE is_active = ?"), true)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return count, nil
}
