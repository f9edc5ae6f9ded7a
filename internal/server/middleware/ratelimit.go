package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP address
// to the specified number per window. Uses a sliding window algorithm.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requests, window)
}

// RateLimitByHeader returns an HTTP middleware that limits requests by a
// specific header value (e.g. X-API-Key) to the specified number per window.
// Requests without the header fall back to the client IP so anonymous
// traffic cannot bypass the limit.
func RateLimitByHeader(headerName string, requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if v := r.Header.Get(headerName); v != "" {
				return v, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
}
