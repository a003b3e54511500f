package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/order"
	"github.com/dionisbeci/iute-integration/internal/payment"
	"github.com/dionisbeci/iute-integration/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// OrderEvents is the part of the order service the webhook routes drive.
type OrderEvents interface {
	HandleConfirmation(ctx context.Context, body []byte, signature, timestamp string) error
	HandleCancellation(ctx context.Context, body []byte, signature, timestamp string) error
}

type Handler struct {
	orders OrderEvents
}

func NewWebhookHandler(orders OrderEvents) *Handler {
	return &Handler{orders: orders}
}

// Confirmation handles POST /iute/confirmation.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "confirmation", h.orders.HandleConfirmation)
}

// Cancellation handles POST /iute/cancellation.
func (h *Handler) Cancellation(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "cancellation", h.orders.HandleCancellation)
}

type handleFunc func(ctx context.Context, body []byte, signature, timestamp string) error

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, kind string, handle handleFunc) {
	log := logger.FromCtx(r.Context()).With(zap.String("webhook", kind))

	// the signature covers the exact bytes, so read them before any parsing
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		writeStatus(w, http.StatusBadRequest, "error", "Failed to read request body")
		return
	}

	err = handle(r.Context(),
		body,
		r.Header.Get(payment.SignatureHeader),
		r.Header.Get(payment.TimestampHeader),
	)

	var verr *order.ValidationError
	switch {
	case err == nil:
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
	case errors.Is(err, order.ErrInvalidSignature):
		log.Warn("Rejected webhook with invalid signature")
		writeStatus(w, http.StatusBadRequest, "error", "Invalid signature")
	case errors.As(err, &verr):
		writeStatus(w, http.StatusBadRequest, "error", verr.Error())
	default:
		log.Error("Webhook handling failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError, "error", "Internal server error")
	}
}

func writeStatus(w http.ResponseWriter, code int, status, message string) {
	utils.WriteJSON(w, code, map[string]string{"status": status, "message": message})
}
