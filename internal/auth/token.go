package auth

import (
	"errors"
	"strings"
)

var (
	ErrMissingAuthorization   = errors.New("authorization header is missing")
	ErrMalformedAuthorization = errors.New("authorization header is not a bearer token")
)

// ExtractBearerToken reads "Bearer <token>" (scheme is case-insensitive).
func ExtractBearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", ErrMissingAuthorization
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedAuthorization
	}

	return parts[1], nil
}
