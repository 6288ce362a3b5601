package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
)

var (
	// ErrMissingAPIKey is returned when the Authorization header is missing
	ErrMissingAPIKey = errors.New("missing Authorization header")

	// ErrMalformedAuthorization is returned when the Authorization header is not a bearer token
	ErrMalformedAuthorization = errors.New("malformed Authorization header")

	// ErrInvalidAPIKey is returned when the bearer token matches no configured key
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// ValidateBearer checks an "Authorization: Bearer <key>" header against the
// allowed keys. Keys are compared by SHA-256 digest in constant time so neither
// the key content nor its length leaks through timing.
func ValidateBearer(header string, keys []string) error {
	if header == "" {
		return ErrMissingAPIKey
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ErrMalformedAuthorization
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMalformedAuthorization
	}

	provided := sha256.Sum256([]byte(token))
	match := 0
	for _, key := range keys {
		expected := sha256.Sum256([]byte(key))
		match |= subtle.ConstantTimeCompare(provided[:], expected[:])
	}

	if match != 1 {
		return ErrInvalidAPIKey
	}
	return nil
}
