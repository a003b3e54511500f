package payment

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/metrics"

	"go.uber.org/zap"
)

const (
	SignatureHeader = "x-iute-signature"
	TimestampHeader = "x-iute-timestamp"
)

// SignatureVerifier checks RSA-SHA256 (PKCS#1 v1.5) signatures over
// body || timestamp, as produced by the Iute webhook sender.
type SignatureVerifier struct {
	keys    KeySource
	metrics *metrics.Metrics
}

func NewSignatureVerifier(keys KeySource, m *metrics.Metrics) *SignatureVerifier {
	return &SignatureVerifier{keys: keys, metrics: m}
}

// Verify never returns the failure reason; it is logged and counted instead.
func (v *SignatureVerifier) Verify(ctx context.Context, body []byte, signatureB64, timestamp string) bool {
	log := logger.FromCtx(ctx)

	err := v.check(ctx, body, signatureB64, timestamp)
	if err == nil {
		log.Info("Signature verification successful")
		return true
	}

	code := FailureKeyFetch
	var verr *VerificationError
	if errors.As(err, &verr) {
		code = verr.Code
	}

	log.Error("Signature verification failed",
		zap.String("failure_code", string(code)),
		zap.Error(err),
	)
	v.metrics.SignatureFailure(string(code))
	return false
}

func (v *SignatureVerifier) check(ctx context.Context, body []byte, signatureB64, timestamp string) error {
	if len(body) == 0 || signatureB64 == "" || timestamp == "" {
		return &VerificationError{Code: FailureMissingInput}
	}

	sig, err := decodeSignature(signatureB64)
	if err != nil {
		return &VerificationError{Code: FailureSignatureDecode, Err: err}
	}

	digest := signedDigest(body, timestamp)

	key, cached, err := v.keys.PublicKey(ctx)
	if err != nil {
		return err
	}

	err = rsa.VerifyPKCS1v15(key, crypto.SHA256, digest, sig)
	if err != nil && cached {
		// The gateway may have rotated its key since we cached it.
		v.keys.Invalidate()
		if key, _, err = v.keys.PublicKey(ctx); err != nil {
			return err
		}
		err = rsa.VerifyPKCS1v15(key, crypto.SHA256, digest, sig)
	}
	if err != nil {
		return &VerificationError{Code: FailureMismatch, Err: err}
	}
	return nil
}

func signedDigest(body []byte, timestamp string) []byte {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(timestamp))
	return h.Sum(nil)
}

func decodeSignature(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if sig, err := base64.StdEncoding.DecodeString(s); err == nil {
		return sig, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
