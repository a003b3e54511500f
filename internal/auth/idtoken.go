package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dionisbeci/iute-integration/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// GoogleIssuers are the iss values Google puts in ID tokens.
var GoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

var ErrInvalidToken = errors.New("invalid or expired token")

// KeySource resolves the verification key for a parsed token, normally by
// its kid header.
type KeySource interface {
	Keyfunc(token *jwt.Token) (any, error)
}

type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// IDTokenVerifier checks OIDC ID tokens: RS256 signature, audience,
// expiry and issuer.
type IDTokenVerifier struct {
	keys     KeySource
	audience string
	issuers  []string
}

func NewIDTokenVerifier(keys KeySource, audience string, issuers []string) *IDTokenVerifier {
	if len(issuers) == 0 {
		issuers = GoogleIssuers
	}
	return &IDTokenVerifier{keys: keys, audience: audience, issuers: issuers}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims, v.keys.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		logger.FromCtx(ctx).Debug("ID token rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}

	return claims, nil
}
