package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/quotegate/quotegate/internal/model"
	"github.com/quotegate/quotegate/internal/service"
)

type contextKeyAuth string

const (
	// AuthIdentityKey is the context key for the authenticated identity.
	AuthIdentityKey contextKeyAuth = "auth_identity"

	// SessionCookieName is the cookie checked for a session token when no
	// token header is present.
	SessionCookieName = "session_token"
)

// Authenticate returns an HTTP middleware that verifies the request's
// credentials. It supports two credential kinds:
//
//  1. API key via the X-API-Key header or an Authorization Bearer token
//  2. Session token via the X-Session-Token header or a session cookie
//
// Either credential alone authenticates the request. On success the resolved
// identity is attached to the request context. On failure a JSON error
// response is returned: 401 for credential problems, 503 when the backing
// store cannot be reached.
func Authenticate(verifier *service.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := ExtractAPIKey(r)
			sessionToken := ExtractSessionToken(r)

			ident, err := verifier.Verify(r.Context(), apiKey, sessionToken)
			if err != nil {
				status, message := authFailure(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				writeAuthError(w, status, message)
				return
			}

			ctx := context.WithValue(r.Context(), AuthIdentityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractAPIKey pulls the API key from the X-API-Key header, falling back to
// an Authorization Bearer token. Returns "" when neither is present.
func ExtractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// ExtractSessionToken pulls the session token from the X-Session-Token
// header, falling back to the session cookie. Returns "" when neither is
// present.
func ExtractSessionToken(r *http.Request) string {
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// GetIdentity extracts the authenticated identity from the context. Returns
// nil if no identity is present (i.e. unauthenticated request).
func GetIdentity(ctx context.Context) *service.Identity {
	if ident, ok := ctx.Value(AuthIdentityKey).(*service.Identity); ok {
		return ident
	}
	return nil
}

// authFailure maps a verification error to an HTTP status and client-safe
// message. Unknown errors are treated as invalid credentials rather than
// leaked to the client.
func authFailure(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		return http.StatusUnauthorized,
			"Authentication required. Provide an X-API-Key header, Bearer token, or X-Session-Token header."
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired. Log in again."
	case errors.Is(err, service.ErrAccountDisabled):
		return http.StatusUnauthorized, "Account is disabled."
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Authentication backend unavailable. Retry shortly."
	default:
		return http.StatusUnauthorized, "Invalid API key or session token."
	}
}

// writeAuthError writes the standard error envelope directly; the handler
// package's helpers are off-limits here because handler imports middleware.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
