package payment

import (
	"encoding/json"
)

// Merchant is the merchant block of an Iute order. PosIdentifier is always
// overwritten by the gateway client.
type Merchant struct {
	PosIdentifier       string  `json:"posIdentifier"`
	SalesmanIdentifier  string  `json:"salesmanIdentifier"`
	UserConfirmationURL *string `json:"userConfirmationUrl,omitempty"`
	UserCancelURL       *string `json:"userCancelUrl,omitempty"`
}

// OrderPayload is the wire body of POST /api/v1/physical-api-partners/order.
// Optional fields are omitted rather than sent as null.
type OrderPayload struct {
	OrderID        string          `json:"orderId"`
	MyiutePhone    string          `json:"myiutePhone"`
	TotalAmount    json.Number     `json:"totalAmount"`
	Currency       string          `json:"currency"`
	Merchant       Merchant        `json:"merchant"`
	Subtotal       json.Number     `json:"subtotal,omitempty"`
	ShippingAmount json.Number     `json:"shippingAmount,omitempty"`
	TaxAmount      json.Number     `json:"taxAmount,omitempty"`
	UserPin        *string         `json:"userPin,omitempty"`
	Birthday       *string         `json:"birthday,omitempty"`
	Gender         *string         `json:"gender,omitempty"`
	Shipping       json.RawMessage `json:"shipping,omitempty"`
	Billing        json.RawMessage `json:"billing,omitempty"`
	Items          json.RawMessage `json:"items,omitempty"`
	Discounts      json.RawMessage `json:"discounts,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// OrderResponse carries the gateway reply verbatim.
type OrderResponse struct {
	Raw json.RawMessage
}

// StatusResponse is the gateway status reply. Raw is the body verbatim;
// Status is set only when the reply carries a string "status" field.
type StatusResponse struct {
	Status string
	Raw    json.RawMessage
}
