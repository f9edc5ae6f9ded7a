package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// apiKeyPrefix tags raw API keys for operator readability. It carries no
// security meaning; all entropy comes from the random bytes that follow.
const apiKeyPrefix = "qg_"

const (
	apiKeyRandomBytes       = 32
	sessionTokenRandomBytes = 48
)

// NewAPIKey generates a raw API key from a cryptographically secure random
// source: "qg_" followed by 32 URL-safe base64 random bytes.
func NewAPIKey() (string, error) {
	b := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return apiKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// NewSessionToken generates a raw session token: 48 URL-safe base64 random
// bytes, no prefix.
func NewSessionToken() (string, error) {
	b := make([]byte, sessionTokenRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DisplayPrefix returns the first few characters of a raw secret, persisted
// alongside the hash so operators can identify a credential without ever
// seeing it again.
func DisplayPrefix(raw string) string {
	if len(raw) <= 10 {
		return raw
	}
	return raw[:10]
}
