package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/quotegate/quotegate/internal/model"
	"github.com/quotegate/quotegate/internal/store"
)

var (
	// ErrMissingCredential means the request supplied neither an API key nor
	// a session token.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidCredential means a credential was supplied but matched
	// nothing in the store.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrSessionExpired means the session token was recognized but its
	// expiry has passed. Distinct from ErrInvalidCredential so clients know
	// to log in again rather than retry verbatim.
	ErrSessionExpired = errors.New("session expired")

	// ErrAccountDisabled means the credential resolved to a deactivated user.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrDuplicateIdentity means registration collided with an existing
	// username or email.
	ErrDuplicateIdentity = errors.New("username or email already in use")

	// ErrStoreUnavailable wraps transient store failures. Never conflated
	// with ErrInvalidCredential: a flaky database must not read as a bad key.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// SessionPolicy selects how session lifetimes behave. The two profiles
// correspond to the gateway's two historical auth schemes and are both
// supported as a configuration choice.
type SessionPolicy string

const (
	// PolicySliding keeps at most one live session per API key and extends
	// its expiry on every successful authenticated call, so sessions only
	// die from inactivity.
	PolicySliding SessionPolicy = "sliding"

	// PolicyAbsolute creates a fixed-TTL session per login, never refreshed.
	// A user may hold many concurrent sessions.
	PolicyAbsolute SessionPolicy = "absolute"
)

// ParsePolicy maps a configured policy name onto a SessionPolicy. The empty
// string selects the sliding default; any other unrecognized value is an
// error so a typo in the config cannot silently change session behavior.
func ParsePolicy(s string) (SessionPolicy, error) {
	switch SessionPolicy(s) {
	case "":
		return PolicySliding, nil
	case PolicySliding:
		return PolicySliding, nil
	case PolicyAbsolute:
		return PolicyAbsolute, nil
	default:
		return "", fmt.Errorf("unknown session policy %q (valid: sliding, absolute)", s)
	}
}

const (
	// DefaultSlidingTTL is the session lifetime under PolicySliding.
	DefaultSlidingTTL = 1 * time.Hour

	// DefaultAbsoluteTTL is the session lifetime under PolicyAbsolute.
	DefaultAbsoluteTTL = 24 * time.Hour

	// DefaultSweepEvery makes roughly one verification in ten run the
	// expired-session sweep.
	DefaultSweepEvery = 10
)

// Options configures a Verifier.
type Options struct {
	Policy     SessionPolicy
	SessionTTL time.Duration // zero means the policy default
	SweepEvery int           // 1-in-N sweep probability, zero means DefaultSweepEvery
}

// Identity is the authenticated identity handle returned to collaborators.
// Session is non-nil only when authentication went through the session
// token path.
type Identity struct {
	UserID   int64
	Username string
	IsActive bool
	Session  *model.Session
}

// Registration is the result of creating an account. APIKey and
// SessionToken hold the raw secrets, returned to the caller exactly once.
type Registration struct {
	User         *model.User
	APIKey       string
	Session      *model.Session
	SessionToken string
}

// LoginResult is the result of a successful password login.
type LoginResult struct {
	User         *model.User
	Session      *model.Session
	SessionToken string
}

// Stats holds the operational counters reported by the health endpoint.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	ActiveSessions int64 `json:"active_sessions"`
}

// Verifier orchestrates credential verification and the session lifecycle
// against the durable store. It holds no mutable state of its own, so a
// single instance is safe for arbitrary concurrent use.
type Verifier struct {
	store  *store.Store
	policy SessionPolicy
	ttl    time.Duration
	logger *slog.Logger

	// Injection points for tests; defaults use the wall clock and a 1-in-N
	// random roll.
	now       func() time.Time
	sweepRoll func() bool
}

// NewVerifier creates a Verifier with the given policy options.
func NewVerifier(st *store.Store, opts Options, logger *slog.Logger) *Verifier {
	policy := opts.Policy
	if policy == "" {
		policy = PolicySliding
	}
	ttl := opts.SessionTTL
	if ttl == 0 {
		if policy == PolicyAbsolute {
			ttl = DefaultAbsoluteTTL
		} else {
			ttl = DefaultSlidingTTL
		}
	}
	sweepEvery := opts.SweepEvery
	if sweepEvery <= 0 {
		sweepEvery = DefaultSweepEvery
	}
	return &Verifier{
		store:     st,
		policy:    policy,
		ttl:       ttl,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		sweepRoll: func() bool { return rand.IntN(sweepEvery) == 0 },
	}
}

// Policy returns the active session policy.
func (v *Verifier) Policy() SessionPolicy { return v.policy }

// SessionTTL returns the configured session lifetime.
func (v *Verifier) SessionTTL() time.Duration { return v.ttl }

// Verify authenticates a request from an optional API key and an optional
// session token; either credential alone suffices. On success it applies
// the renewal policy and bumps the user's request counter. Every rejection
// is terminal for the current request.
func (v *Verifier) Verify(ctx context.Context, apiKey, sessionToken string) (*Identity, error) {
	if apiKey == "" && sessionToken == "" {
		return nil, ErrMissingCredential
	}

	// Amortized janitor: occasionally sweep expired sessions before
	// evaluating credentials. Correctness never depends on the sweep
	// because expiry is re-checked below on every call.
	if v.sweepRoll() {
		if n, err := v.store.SweepExpiredSessions(ctx, v.now()); err != nil {
			v.logger.Warn("session sweep failed", "error", err)
		} else if n > 0 {
			v.logger.Debug("swept expired sessions", "count", n)
		}
	}

	if apiKey != "" {
		user, err := v.store.GetUserByKeyHash(ctx, HashSecret(apiKey))
		switch {
		case err == nil:
			if !user.IsActive {
				return nil, ErrAccountDisabled
			}
			// A valid API key authenticates on its own. Session state is
			// never consulted on this path: machine clients hold a key and
			// no login; sessions exist for interactive clients.
			return v.succeedWithKey(ctx, user)
		case errors.Is(err, store.ErrNotFound):
			// Fall through to the session token, if one was presented.
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if sessionToken != "" {
		return v.verifySession(ctx, sessionToken)
	}

	return nil, ErrInvalidCredential
}

// succeedWithKey finishes a successful API-key verification: under the
// sliding profile the session bound to the key is upserted, then the
// request counter is bumped. Both writes are best-effort; the caller is
// already authenticated.
func (v *Verifier) succeedWithKey(ctx context.Context, user *model.User) (*Identity, error) {
	if v.policy == PolicySliding {
		now := v.now()
		refreshed, err := v.store.RefreshSessionByKeyHash(ctx, user.APIKeyHash, now, now.Add(v.ttl))
		if err != nil {
			v.logger.Warn("session refresh failed", "user", user.Username, "error", err)
		} else if !refreshed {
			if _, _, err := v.createSession(ctx, user, nil, nil); err != nil {
				v.logger.Warn("session create failed", "user", user.Username, "error", err)
			}
		}
	}
	if err := v.store.IncrementRequestCount(ctx, user.ID); err != nil {
		v.logger.Warn("request count update failed", "user", user.Username, "error", err)
	}
	return &Identity{UserID: user.ID, Username: user.Username, IsActive: true}, nil
}

func (v *Verifier) verifySession(ctx context.Context, sessionToken string) (*Identity, error) {
	sess, err := v.store.GetActiveSessionByTokenHash(ctx, HashSecret(sessionToken))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := v.now()
	if sess.Expired(now) {
		// Lazy deactivation: the sweep would catch this row eventually,
		// but flag it now so findActiveByToken stops returning it.
		if _, derr := v.store.DeactivateSessionByTokenHash(ctx, sess.TokenHash); derr != nil {
			v.logger.Warn("expired session deactivation failed", "error", derr)
		}
		return nil, ErrSessionExpired
	}

	user, err := v.store.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if v.policy == PolicySliding {
		expiresAt := now.Add(v.ttl)
		if err := v.store.TouchSessionByTokenHash(ctx, sess.TokenHash, now, expiresAt); err != nil {
			v.logger.Warn("session touch failed", "user", user.Username, "error", err)
		} else {
			sess.LastActivity = now
			sess.ExpiresAt = expiresAt
		}
	}
	if err := v.store.IncrementRequestCount(ctx, user.ID); err != nil {
		v.logger.Warn("request count update failed", "user", user.Username, "error", err)
	}

	return &Identity{UserID: user.ID, Username: user.Username, IsActive: true, Session: sess}, nil
}

// Register creates a user with a fresh API key and an initial session. The
// raw API key and session token appear only in the returned Registration.
func (v *Verifier) Register(ctx context.Context, username, email, password string, ip, userAgent *string) (*Registration, error) {
	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rawKey, err := NewAPIKey()
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		APIKeyHash:   HashSecret(rawKey),
		KeyPrefix:    DisplayPrefix(rawKey),
		IsActive:     true,
	}
	if err := v.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, rawToken, err := v.createSession(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}

	return &Registration{User: user, APIKey: rawKey, Session: sess, SessionToken: rawToken}, nil
}

// Login verifies a username/password pair and establishes a session. Under
// the sliding profile any live session for the user's key is superseded, so
// the one-active-session-per-key invariant holds.
func (v *Verifier) Login(ctx context.Context, username, password string, ip, userAgent *string) (*LoginResult, error) {
	user, err := v.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	now := v.now()
	if err := v.store.UpdateUserLastLogin(ctx, user.ID, now); err != nil {
		v.logger.Warn("last login update failed", "user", user.Username, "error", err)
	}
	user.LastLoginAt = &now

	if v.policy == PolicySliding {
		if _, err := v.store.DeactivateSessionsByKeyHash(ctx, user.APIKeyHash); err != nil {
			v.logger.Warn("session supersede failed", "user", user.Username, "error", err)
		}
	}

	sess, rawToken, err := v.createSession(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Session: sess, SessionToken: rawToken}, nil
}

// Logout deactivates the session for a raw token, reporting whether an
// active session existed. A second logout with the same token returns false.
func (v *Verifier) Logout(ctx context.Context, sessionToken string) (bool, error) {
	if sessionToken == "" {
		return false, ErrMissingCredential
	}
	ok, err := v.store.DeactivateSessionByTokenHash(ctx, HashSecret(sessionToken))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return ok, nil
}

// RotateAPIKey replaces a user's API key and returns the new raw key, shown
// once. The swap is a single atomic update: the old key is dead the moment
// the new one is live.
func (v *Verifier) RotateAPIKey(ctx context.Context, userID int64) (string, error) {
	rawKey, err := NewAPIKey()
	if err != nil {
		return "", err
	}
	if err := v.store.RotateUserKey(ctx, userID, HashSecret(rawKey), DisplayPrefix(rawKey)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rawKey, nil
}

// Sweep runs the expired-session sweep immediately, outside the
// probabilistic path. Used by the CLI and tests.
func (v *Verifier) Sweep(ctx context.Context) (int64, error) {
	return v.store.SweepExpiredSessions(ctx, v.now())
}

// Stats returns the user and active-session counters.
func (v *Verifier) Stats(ctx context.Context) (*Stats, error) {
	users, err := v.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sessions, err := v.store.CountActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &Stats{TotalUsers: users, ActiveSessions: sessions}, nil
}

func (v *Verifier) createSession(ctx context.Context, user *model.User, ip, userAgent *string) (*model.Session, string, error) {
	rawToken, err := NewSessionToken()
	if err != nil {
		return nil, "", err
	}
	now := v.now()
	sess := &model.Session{
		UserID:       user.ID,
		TokenHash:    HashSecret(rawToken),
		TokenPrefix:  DisplayPrefix(rawToken),
		KeyHash:      user.APIKeyHash,
		LastActivity: now,
		ExpiresAt:    now.Add(v.ttl),
		IsActive:     true,
		IPAddress:    ip,
		UserAgent:    userAgent,
	}
	if err := v.store.CreateSession(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return sess, rawToken, nil
}
