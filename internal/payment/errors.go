package payment

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstreamUnreachable covers transport failures and timeouts.
	ErrUpstreamUnreachable = errors.New("iute api unreachable")
	// ErrMalformedResponse means a 2xx reply whose body could not be decoded.
	ErrMalformedResponse = errors.New("iute api returned a malformed response")
)

// UpstreamError is a non-2xx reply from the gateway. Payload is the decoded
// JSON body when the reply was JSON, otherwise the body text.
type UpstreamError struct {
	StatusCode int
	Payload    any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("iute api rejected request: status %d", e.StatusCode)
}

func (e *UpstreamError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// FailureCode classifies why a webhook signature was rejected. It is only
// used for logs and metrics.
type FailureCode string

const (
	FailureMissingInput    FailureCode = "missing_input"
	FailureKeyFetch        FailureCode = "key_fetch"
	FailureKeyParse        FailureCode = "key_parse"
	FailureSignatureDecode FailureCode = "signature_decode"
	FailureMismatch        FailureCode = "mismatch"
)

type VerificationError struct {
	Code FailureCode
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return "signature verification failed: " + string(e.Code)
	}
	return fmt.Sprintf("signature verification failed: %s: %v", e.Code, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
