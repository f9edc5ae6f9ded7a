package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quotegate/quotegate/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite("") // in-memory
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "bcrypt-hash-placeholder",
		APIKeyHash:   "key-hash-" + username,
		KeyPrefix:    "qg_" + username,
		IsActive:     true,
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return user
}

func seedSession(t *testing.T, s *Store, user *model.User, tokenHash string, expiresAt time.Time) *model.Session {
	t.Helper()
	sess := &model.Session{
		UserID:       user.ID,
		TokenHash:    tokenHash,
		TokenPrefix:  tokenHash[:min(10, len(tokenHash))],
		KeyHash:      user.APIKeyHash,
		LastActivity: time.Now().UTC(),
		ExpiresAt:    expiresAt,
		IsActive:     true,
	}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "alice")
	if user.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("got username %q, want %q", got.Username, "alice")
	}
	if got.Email != "alice@example.com" {
		t.Errorf("got email %q, want %q", got.Email, "alice@example.com")
	}

	got2, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got2.ID != user.ID {
		t.Errorf("got ID %d, want %d", got2.ID, user.ID)
	}

	got3, err := s.GetUserByKeyHash(ctx, "key-hash-alice")
	if err != nil {
		t.Fatalf("GetUserByKeyHash: %v", err)
	}
	if got3.ID != user.ID {
		t.Errorf("got ID %d, want %d", got3.ID, user.ID)
	}

	list, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d users, want 1", len(list))
	}

	count, err := s.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 1 {
		t.Errorf("got count %d, want 1", count)
	}
}

func TestUserNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUserByID(ctx, 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByUsername: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByKeyHash(ctx, "no-such-hash"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByKeyHash: expected ErrNotFound, got %v", err)
	}
	if err := s.RotateUserKey(ctx, 42, "h", "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RotateUserKey: expected ErrNotFound, got %v", err)
	}
	if err := s.SetUserActive(ctx, 42, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetUserActive: expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "bob")

	dup := &model.User{
		Username:     "bob",
		Email:        "different@example.com",
		PasswordHash: "x",
		APIKeyHash:   "different-hash",
		KeyPrefix:    "qg_other",
		IsActive:     true,
	}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestEmptyEmailNotUnique(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two users without email must not collide on the unique index.
	for _, name := range []string{"carol", "dave"} {
		user := &model.User{
			Username:     name,
			PasswordHash: "x",
			APIKeyHash:   "hash-" + name,
			KeyPrefix:    "qg_" + name,
			IsActive:     true,
		}
		if err := s.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser(%s): %v", name, err)
		}
	}
}

func TestRotateUserKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "erin")

	if err := s.RotateUserKey(ctx, user.ID, "new-hash", "qg_newpref"); err != nil {
		t.Fatalf("RotateUserKey: %v", err)
	}

	if _, err := s.GetUserByKeyHash(ctx, "key-hash-erin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("old hash should not resolve, got %v", err)
	}
	got, err := s.GetUserByKeyHash(ctx, "new-hash")
	if err != nil {
		t.Fatalf("GetUserByKeyHash(new): %v", err)
	}
	if got.KeyPrefix != "qg_newpref" {
		t.Errorf("got prefix %q, want %q", got.KeyPrefix, "qg_newpref")
	}
}

func TestIncrementRequestCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "frank")
	for i := 0; i < 5; i++ {
		if err := s.IncrementRequestCount(ctx, user.ID); err != nil {
			t.Fatalf("IncrementRequestCount: %v", err)
		}
	}

	got, _ := s.GetUserByID(ctx, user.ID)
	if got.TotalRequests != 5 {
		t.Errorf("got %d requests, want 5", got.TotalRequests)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	user := seedUser(t, s, "grace")
	sess := seedSession(t, s, user, "token-hash-1", future)
	if sess.ID == 0 {
		t.Fatal("expected non-zero session ID")
	}

	got, err := s.GetActiveSessionByTokenHash(ctx, "token-hash-1")
	if err != nil {
		t.Fatalf("GetActiveSessionByTokenHash: %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("got user %d, want %d", got.UserID, user.ID)
	}

	got2, err := s.GetActiveSessionByKeyHash(ctx, user.APIKeyHash)
	if err != nil {
		t.Fatalf("GetActiveSessionByKeyHash: %v", err)
	}
	if got2.ID != sess.ID {
		t.Errorf("got session %d, want %d", got2.ID, sess.ID)
	}

	// Deactivate once: reported. Twice: nothing to do.
	ok, err := s.DeactivateSessionByTokenHash(ctx, "token-hash-1")
	if err != nil {
		t.Fatalf("DeactivateSessionByTokenHash: %v", err)
	}
	if !ok {
		t.Error("first deactivation should report a change")
	}
	ok, _ = s.DeactivateSessionByTokenHash(ctx, "token-hash-1")
	if ok {
		t.Error("second deactivation should report no change")
	}

	if _, err := s.GetActiveSessionByTokenHash(ctx, "token-hash-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deactivated session should be invisible, got %v", err)
	}
}

func TestRefreshSessionByKeyHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := seedUser(t, s, "heidi")

	// No session yet: refresh reports false.
	ok, err := s.RefreshSessionByKeyHash(ctx, user.APIKeyHash, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("RefreshSessionByKeyHash: %v", err)
	}
	if ok {
		t.Error("refresh with no session should report false")
	}

	seedSession(t, s, user, "token-hash-2", now.Add(time.Hour))

	newDeadline := now.Add(2 * time.Hour)
	ok, err = s.RefreshSessionByKeyHash(ctx, user.APIKeyHash, now, newDeadline)
	if err != nil {
		t.Fatalf("RefreshSessionByKeyHash: %v", err)
	}
	if !ok {
		t.Error("refresh with a live session should report true")
	}

	got, _ := s.GetActiveSessionByKeyHash(ctx, user.APIKeyHash)
	if !got.ExpiresAt.Equal(newDeadline) {
		t.Errorf("got deadline %v, want %v", got.ExpiresAt, newDeadline)
	}
}

func TestSweepExpiredSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	user := seedUser(t, s, "ivan")
	seedSession(t, s, user, "expired-1", now.Add(-2*time.Hour))
	seedSession(t, s, user, "expired-2", now.Add(-time.Minute))
	seedSession(t, s, user, "live-1", now.Add(time.Hour))

	swept, err := s.SweepExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("SweepExpiredSessions: %v", err)
	}
	if swept != 2 {
		t.Errorf("got %d swept, want 2", swept)
	}

	// Idempotent: nothing left to sweep.
	swept, _ = s.SweepExpiredSessions(ctx, now)
	if swept != 0 {
		t.Errorf("second sweep: got %d, want 0", swept)
	}

	// The live session is untouched.
	if _, err := s.GetActiveSessionByTokenHash(ctx, "live-1"); err != nil {
		t.Errorf("live session should survive: %v", err)
	}

	count, _ := s.CountActiveSessions(ctx)
	if count != 1 {
		t.Errorf("got %d active sessions, want 1", count)
	}
}

func TestDeactivateSessionsByKeyHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	user := seedUser(t, s, "judy")
	seedSession(t, s, user, "jt-1", future)
	seedSession(t, s, user, "jt-2", future)

	n, err := s.DeactivateSessionsByKeyHash(ctx, user.APIKeyHash)
	if err != nil {
		t.Fatalf("DeactivateSessionsByKeyHash: %v", err)
	}
	if n != 2 {
		t.Errorf("got %d deactivated, want 2", n)
	}

	if _, err := s.GetActiveSessionByKeyHash(ctx, user.APIKeyHash); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no active sessions, got %v", err)
	}
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	user := seedUser(t, s, "kate")
	for i := 0; i < 3; i++ {
		seedSession(t, s, user, "kt-"+string(rune('a'+i)), future)
	}

	sessions, err := s.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("got %d sessions, want 2", len(sessions))
	}
}
