package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/quotegate/quotegate/internal/model"
	"github.com/quotegate/quotegate/internal/server/middleware"
	"github.com/quotegate/quotegate/internal/service"
	"github.com/quotegate/quotegate/internal/store"
)

// AuthHandler serves registration, login, and credential management.
type AuthHandler struct {
	store    *store.Store
	verifier *service.Verifier
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(st *store.Store, verifier *service.Verifier) *AuthHandler {
	return &AuthHandler{store: st, verifier: verifier}
}

// registerRequest is the expected payload for the Register endpoint.
type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a new account and returns its API key and an initial
// session token. Both secrets are returned exactly once.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	reg, err := h.verifier.Register(r.Context(), req.Username, req.Email, req.Password, clientIP(r), clientUserAgent(r))
	if err != nil {
		if errors.Is(err, service.ErrDuplicateIdentity) {
			writeError(w, http.StatusConflict, "Username or email already registered")
			return
		}
		if errors.Is(err, service.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "Registration failed: "+err.Error())
		return
	}

	// The raw API key and session token appear only in this response.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user":          userToMap(reg.User),
		"api_key":       reg.APIKey,
		"session_token": reg.SessionToken,
		"expires_at":    reg.Session.ExpiresAt,
	})
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates with username and password and returns a fresh session
// token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	result, err := h.verifier.Login(r.Context(), req.Username, req.Password, clientIP(r), clientUserAgent(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredential):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, service.ErrAccountDisabled):
			writeError(w, http.StatusUnauthorized, "Account is disabled")
		case errors.Is(err, service.ErrStoreUnavailable):
			writeError(w, http.StatusServiceUnavailable, "Store unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "Login failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":          userToMap(result.User),
		"session_token": result.SessionToken,
		"token_type":    "session",
		"expires_at":    result.Session.ExpiresAt,
		"expires_in":    int(time.Until(result.Session.ExpiresAt).Seconds()),
	})
}

// Logout invalidates the presented session token. Returns 404 when no live
// session matches the token, so clients can tell a stale token apart from a
// successful logout.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractSessionToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "No session token presented")
		return
	}

	ok, err := h.verifier.Logout(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Logout failed: "+err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "No active session for this token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// Verify reports the identity behind the presented credential. The auth
// middleware has already done the verification; this endpoint just echoes
// the outcome.
// GET /api/v1/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	resp := map[string]interface{}{
		"valid":    true,
		"user_id":  ident.UserID,
		"username": ident.Username,
	}
	if ident.Session != nil {
		resp["session"] = sessionToMap(ident.Session)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RotateKey replaces the account's API key. The old key stops working
// immediately; the new key is returned exactly once.
// POST /api/v1/auth/keys/rotate
func (h *AuthHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	newKey, err := h.verifier.RotateAPIKey(r.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Key rotation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"api_key":    newKey,
		"key_prefix": service.DisplayPrefix(newKey),
		"message":    "Store this key now. It will not be shown again.",
	})
}

// Me returns the authenticated account and, when the request was session
// authenticated, the session's remaining lifetime.
// GET /api/v1/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load account: "+err.Error())
		return
	}

	resp := map[string]interface{}{
		"user": userToMap(user),
	}
	if ident.Session != nil {
		m := sessionToMap(ident.Session)
		m["remaining_seconds"] = int(ident.Session.Remaining(time.Now()).Seconds())
		resp["session"] = m
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// Serialization helpers (never expose credential hashes)
// ---------------------------------------------------------------------------

func userToMap(user *model.User) map[string]interface{} {
	m := map[string]interface{}{
		"id":             user.ID,
		"username":       user.Username,
		"key_prefix":     user.KeyPrefix,
		"is_active":      user.IsActive,
		"total_requests": user.TotalRequests,
		"created_at":     user.CreatedAt,
	}
	if user.Email != "" {
		m["email"] = user.Email
	}
	if user.LastLoginAt != nil {
		m["last_login_at"] = user.LastLoginAt
	}
	return m
}

func sessionToMap(sess *model.Session) map[string]interface{} {
	return map[string]interface{}{
		"id":            sess.ID,
		"token_prefix":  sess.TokenPrefix,
		"last_activity": sess.LastActivity,
		"expires_at":    sess.ExpiresAt,
		"is_active":     sess.IsActive,
		"created_at":    sess.CreatedAt,
	}
}
