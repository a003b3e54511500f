// internal/payment/payment.go
package payment

import (
	"context"
)

// Gateway is the outbound side of the Iute physical-partner API.
type Gateway interface {
	CreateOrUpdateOrder(ctx context.Context, payload *OrderPayload) (*OrderResponse, error)
	GetOrderStatus(ctx context.Context, orderID string) (*StatusResponse, error)
}

// Verifier authenticates inbound Iute webhooks.
type Verifier interface {
	Verify(ctx context.Context, body []byte, signatureB64, timestamp string) bool
}
