package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrOrderFinalized     = errors.New("order is already confirmed or cancelled")
	ErrGatewayUnavailable = errors.New("failed to communicate with Iute API")
)

// ValidationError is a client input problem. Missing lists every absent
// required field and Invalid every field whose value could not be decoded.
type ValidationError struct {
	Missing []string
	Invalid []string
	Message string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Request body must include all required fields: "+strings.Join(e.Missing, ", "))
	}
	switch len(e.Invalid) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("Field '%s' has an invalid value.", e.Invalid[0]))
	default:
		parts = append(parts, fmt.Sprintf("Fields '%s' have invalid values.", strings.Join(e.Invalid, "', '")))
	}
	if len(parts) == 0 {
		return e.Message
	}
	return strings.Join(parts, "; ")
}
