package order

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dionisbeci/iute-integration/internal/payment"

	"github.com/shopspring/decimal"
)

const birthdayLayout = "02.01.2006"

// ToGatewayPayload builds the Iute wire payload. posIdentifier is left for
// the gateway client to fill in.
func ToGatewayPayload(req *PaymentRequest, orderID string) *payment.OrderPayload {
	p := &payment.OrderPayload{
		OrderID:        orderID,
		MyiutePhone:    strings.TrimSpace(*req.MyiutePhone),
		TotalAmount:    json.Number(req.TotalAmount.String()),
		Currency:       *req.Currency,
		Subtotal:       numberOrEmpty(req.Subtotal),
		ShippingAmount: numberOrEmpty(req.ShippingAmount),
		TaxAmount:      numberOrEmpty(req.TaxAmount),
		UserPin:        req.UserPin,
		Birthday:       req.Birthday,
		Gender:         req.Gender,
		Shipping:       req.Shipping,
		Billing:        req.Billing,
		Items:          req.Items,
		Discounts:      req.Discounts,
		Metadata:       req.Metadata,
	}
	if req.Merchant != nil {
		p.Merchant = payment.Merchant{
			SalesmanIdentifier:  *req.Merchant.SalesmanIdentifier,
			UserConfirmationURL: req.Merchant.UserConfirmationURL,
			UserCancelURL:       req.Merchant.UserCancelURL,
		}
	}
	return p
}

// ToOrder builds the row stored after the gateway accepted the request.
// The customer PIN is never stored.
func ToOrder(req *PaymentRequest, orderID string, gatewayResponse json.RawMessage) *Order {
	o := &Order{
		OrderID:         orderID,
		Status:          StatusPending,
		TotalAmount:     *req.TotalAmount,
		Subtotal:        nullDecimal(req.Subtotal),
		ShippingAmount:  nullDecimal(req.ShippingAmount),
		TaxAmount:       nullDecimal(req.TaxAmount),
		Currency:        *req.Currency,
		CustomerPhone:   strings.TrimSpace(*req.MyiutePhone),
		Gender:          req.Gender,
		ShippingInfo:    req.Shipping,
		BillingInfo:     req.Billing,
		Items:           req.Items,
		Discounts:       req.Discounts,
		Metadata:        req.Metadata,
		GatewayResponse: gatewayResponse,
	}
	if req.Merchant != nil {
		o.SalesmanIdentifier = *req.Merchant.SalesmanIdentifier
		o.UserConfirmationURL = req.Merchant.UserConfirmationURL
		o.UserCancelURL = req.Merchant.UserCancelURL
	}
	if len(o.Items) == 0 {
		o.Items = json.RawMessage(`[]`)
	}
	if req.Birthday != nil {
		o.Birthday = ParseBirthday(*req.Birthday)
	}
	return o
}

// ParseBirthday reads dd.MM.yyyy; anything else yields nil.
func ParseBirthday(s string) *time.Time {
	t, err := time.Parse(birthdayLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

func numberOrEmpty(d *decimal.Decimal) json.Number {
	if d == nil {
		return ""
	}
	return json.Number(d.String())
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
