package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var amountFields = []string{"totalAmount", "subtotal", "shippingAmount", "taxAmount"}

func errInvalidJSON() error {
	return &ValidationError{Message: "Request body must be a valid JSON."}
}

// DecodePaymentRequest parses a POS request body. Any decoding problem is
// reported as a *ValidationError naming every undecodable field together
// with every missing required one.
func DecodePaymentRequest(body []byte) (*PaymentRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errInvalidJSON()
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, errInvalidJSON()
	}

	var invalid []string
	for _, name := range amountFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var amount *decimal.Decimal
		if err := json.Unmarshal(raw, &amount); err != nil {
			invalid = append(invalid, name)
			delete(fields, name)
		}
	}

	var req PaymentRequest
	for {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, errInvalidJSON()
		}
		req = PaymentRequest{}
		err = json.Unmarshal(data, &req)
		if err == nil {
			break
		}
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) || typeErr.Field == "" {
			return nil, errInvalidJSON()
		}
		invalid = append(invalid, typeErr.Field)
		delete(fields, strings.SplitN(typeErr.Field, ".", 2)[0])
	}

	if len(invalid) > 0 {
		var missing []string
		for _, name := range req.missingFields() {
			if !slices.Contains(invalid, name) {
				missing = append(missing, name)
			}
		}
		return nil, &ValidationError{Missing: missing, Invalid: invalid}
	}
	return &req, nil
}

func (r *PaymentRequest) missingFields() []string {
	var missing []string
	if r.TotalAmount == nil {
		missing = append(missing, "totalAmount")
	}
	if blank(r.MyiutePhone) {
		missing = append(missing, "myiutePhone")
	}
	if blank(r.Currency) {
		missing = append(missing, "currency")
	}
	if r.Merchant == nil || blank(r.Merchant.SalesmanIdentifier) {
		missing = append(missing, "merchant.salesmanIdentifier")
	}
	return missing
}

// Validate checks required fields, the currency and amount signs.
// Currency is normalized to upper case in place.
func (r *PaymentRequest) Validate() error {
	if missing := r.missingFields(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	currency := strings.ToUpper(strings.TrimSpace(*r.Currency))
	if !slices.Contains(SupportedCurrencies, currency) {
		return &ValidationError{Message: fmt.Sprintf(
			"Invalid currency '%s'. Supported currencies are: %s.",
			*r.Currency, strings.Join(SupportedCurrencies, ", "),
		)}
	}
	r.Currency = &currency

	if !r.TotalAmount.IsPositive() {
		return &ValidationError{Message: "Field 'totalAmount' must be a positive amount."}
	}
	optional := []struct {
		name   string
		amount *decimal.Decimal
	}{
		{"subtotal", r.Subtotal},
		{"shippingAmount", r.ShippingAmount},
		{"taxAmount", r.TaxAmount},
	}
	for _, f := range optional {
		if f.amount != nil && f.amount.IsNegative() {
			return &ValidationError{Message: fmt.Sprintf("Field '%s' must not be negative.", f.name)}
		}
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
