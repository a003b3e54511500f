package payment

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const publicKeyCacheKey = "iute"

// KeySource supplies the gateway's webhook signing key. cached reports
// whether the key came from a local cache rather than a fresh fetch.
type KeySource interface {
	PublicKey(ctx context.Context) (key *rsa.PublicKey, cached bool, err error)
	Invalidate()
}

// PublicKeyFetcher downloads the PEM key from a fixed URL. With a zero TTL
// every call hits the network.
type PublicKeyFetcher struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	cache      *expirable.LRU[string, *rsa.PublicKey]
}

func NewPublicKeyFetcher(url string, timeout, ttl time.Duration) *PublicKeyFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	f := &PublicKeyFetcher{
		url:        url,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
	if ttl > 0 {
		f.cache = expirable.NewLRU[string, *rsa.PublicKey](1, nil, ttl)
	}
	return f
}

func (f *PublicKeyFetcher) PublicKey(ctx context.Context) (*rsa.PublicKey, bool, error) {
	if f.cache != nil {
		if key, ok := f.cache.Get(publicKeyCacheKey); ok {
			return key, true, nil
		}
	}

	key, err := f.fetch(ctx)
	if err != nil {
		return nil, false, err
	}

	if f.cache != nil {
		f.cache.Add(publicKeyCacheKey, key)
	}
	return key, false, nil
}

func (f *PublicKeyFetcher) Invalidate() {
	if f.cache != nil {
		f.cache.Remove(publicKeyCacheKey)
	}
}

func (f *PublicKeyFetcher) fetch(ctx context.Context) (*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, &VerificationError{Code: FailureKeyFetch, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &VerificationError{Code: FailureKeyFetch, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &VerificationError{
			Code: FailureKeyFetch,
			Err:  fmt.Errorf("public key endpoint returned %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, &VerificationError{Code: FailureKeyFetch, Err: err}
	}

	key, err := ParsePublicKeyPEM(data)
	if err != nil {
		return nil, &VerificationError{Code: FailureKeyParse, Err: err}
	}
	return key, nil
}

// ParsePublicKeyPEM accepts a PKIX "PUBLIC KEY" or PKCS#1 "RSA PUBLIC KEY" block.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unsupported public key type %T", pub)
	}
	return key, nil
}
