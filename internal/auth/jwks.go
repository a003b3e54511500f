package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/dionisbeci/iute-integration/internal/logger"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	jwksRefreshInterval = time.Hour
	// a token with an unseen kid may force at most one refetch per window
	unknownKIDRefreshEvery = 5 * time.Minute
	unknownKIDWaitMax      = time.Second
)

// NewJWKS returns a KeySource backed by a remote JWKS endpoint. The set is
// fetched once up front and refreshed in the background until ctx is done.
// An unreachable endpoint at startup is logged, not fatal.
func NewJWKS(ctx context.Context, url string, timeout time.Duration) (keyfunc.Keyfunc, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := logger.L().With(zap.String("url", url))

	remote, err := jwkset.NewStorageFromHTTP(url, jwkset.HTTPClientStorageOptions{
		Ctx:                       ctx,
		HTTPTimeout:               timeout,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			log.Error("Failed refreshing JWKS", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}

	client, err := jwkset.NewHTTPClient(jwkset.HTTPClientOptions{
		HTTPURLs:          map[string]jwkset.Storage{url: remote},
		RateLimitWaitMax:  unknownKIDWaitMax,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(unknownKIDRefreshEvery), 1),
	})
	if err != nil {
		return nil, fmt.Errorf("jwks client: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{
		Ctx:          ctx,
		Storage:      client,
		UseWhitelist: []jwkset.USE{jwkset.UseSig},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return kf, nil
}
