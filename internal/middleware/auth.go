package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dionisbeci/iute-integration/internal/auth"
	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/utils"

	"go.uber.org/zap"
)

type contextKey string

const TokenClaimsKey contextKey = "tokenClaims"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// BearerAuth rejects requests without a valid OIDC ID token.
func BearerAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromCtx(r.Context())

			token, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
			switch {
			case errors.Is(err, auth.ErrMissingAuthorization):
				utils.WriteJSONError(w, "Authorization header is missing", http.StatusUnauthorized)
				return
			case err != nil:
				utils.WriteJSONError(w, "Invalid Authorization header format. Expected 'Bearer <token>'", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Warn("Token verification failed", zap.Error(err))
				utils.WriteJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), TokenClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(TokenClaimsKey).(*auth.Claims)
	return c, ok
}
