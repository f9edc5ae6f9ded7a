package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret returns the hex-encoded SHA-256 digest of a bearer secret.
// API keys and session tokens are both stored this way; the raw value is
// never persisted or logged in recoverable form.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret recomputes the digest of secret and compares it against the
// stored digest in constant time.
func VerifySecret(secret, digest string) bool {
	computed := HashSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// HashPassword hashes a password with bcrypt. Unlike bearer secrets, which
// carry 256 bits of entropy, passwords are low-entropy and get an adaptive
// hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
