package order

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ParseStatus maps a gateway status string onto a known order status.
func ParseStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// SupportedCurrencies lists the currencies Iute accepts, in display order.
var SupportedCurrencies = []string{"EUR", "ALL", "MDL", "MKD"}

// Order is one row of the orders table.
type Order struct {
	OrderID            string
	Status             OrderStatus
	CancellationReason *string

	TotalAmount    decimal.Decimal
	Subtotal       decimal.NullDecimal
	ShippingAmount decimal.NullDecimal
	TaxAmount      decimal.NullDecimal
	Currency       string

	CustomerPhone string
	Birthday      *time.Time
	Gender        *string

	SalesmanIdentifier  string
	UserConfirmationURL *string
	UserCancelURL       *string

	ShippingInfo json.RawMessage
	BillingInfo  json.RawMessage
	Items        json.RawMessage
	Discounts    json.RawMessage
	Metadata     json.RawMessage

	GatewayResponse json.RawMessage
}

type MerchantInput struct {
	SalesmanIdentifier  *string `json:"salesmanIdentifier"`
	UserConfirmationURL *string `json:"userConfirmationUrl"`
	UserCancelURL       *string `json:"userCancelUrl"`
}

// PaymentRequest is the body of POST /create_or_update_payment.
type PaymentRequest struct {
	OrderID        *string          `json:"orderId"`
	TotalAmount    *decimal.Decimal `json:"totalAmount"`
	MyiutePhone    *string          `json:"myiutePhone"`
	Currency       *string          `json:"currency"`
	Merchant       *MerchantInput   `json:"merchant"`
	Subtotal       *decimal.Decimal `json:"subtotal"`
	ShippingAmount *decimal.Decimal `json:"shippingAmount"`
	TaxAmount      *decimal.Decimal `json:"taxAmount"`
	UserPin        *string          `json:"userPin"`
	Birthday       *string          `json:"birthday"`
	Gender         *string          `json:"gender"`
	Shipping       json.RawMessage  `json:"shipping"`
	Billing        json.RawMessage  `json:"billing"`
	Items          json.RawMessage  `json:"items"`
	Discounts      json.RawMessage  `json:"discounts"`
	Metadata       json.RawMessage  `json:"metadata"`
}

type CreateResult struct {
	OrderID         string
	GatewayResponse json.RawMessage
}
