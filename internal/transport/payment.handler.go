package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/middleware"
	"github.com/dionisbeci/iute-integration/internal/order"
	"github.com/dionisbeci/iute-integration/internal/payment"
	"github.com/dionisbeci/iute-integration/internal/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// PaymentService is the POS-facing part of the order service.
type PaymentService interface {
	CreateOrUpdate(ctx context.Context, req *order.PaymentRequest) (*order.CreateResult, error)
	CheckStatus(ctx context.Context, orderID string) (*payment.StatusResponse, error)
}

type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type createResponse struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	OrderID      string          `json:"orderId"`
	IuteResponse json.RawMessage `json:"iute_response"`
}

type upstreamErrorResponse struct {
	Error          string `json:"error"`
	IuteStatusCode int    `json:"iute_status_code"`
	IuteResponse   any    `json:"iute_response"`
}

// CreateOrUpdate handles POST /create_or_update_payment.
func (h *PaymentHandler) CreateOrUpdate(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Warn("Failed to read request body", zap.Error(err))
		utils.WriteJSONError(w, "Request body must be a valid JSON.", http.StatusBadRequest)
		return
	}

	req, err := order.DecodePaymentRequest(body)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Info("Create/update payment requested", zap.Stringp("order_id", req.OrderID))

	res, err := h.svc.CreateOrUpdate(r.Context(), req)
	if err != nil {
		var (
			verr     *order.ValidationError
			upstream *payment.UpstreamError
		)
		switch {
		case errors.As(err, &verr):
			utils.WriteJSONError(w, verr.Error(), http.StatusBadRequest)
		case errors.Is(err, order.ErrOrderFinalized):
			utils.WriteJSONError(w, "Order is already confirmed or cancelled and cannot be updated.", http.StatusConflict)
		case errors.As(err, &upstream):
			utils.WriteJSON(w, http.StatusBadGateway, upstreamErrorResponse{
				Error:          "Iute API rejected the request.",
				IuteStatusCode: upstream.StatusCode,
				IuteResponse:   upstream.Payload,
			})
		default:
			utils.WriteJSONError(w, "Failed to communicate with Iute API", http.StatusInternalServerError)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, createResponse{
		Status:       "success",
		Message:      "Payment request sent successfully.",
		OrderID:      res.OrderID,
		IuteResponse: res.GatewayResponse,
	})
}

// Status handles GET /payment_status/{orderId}.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.PathValue("orderId"))
	if orderID == "" {
		utils.WriteJSONError(w, "orderId is required", http.StatusBadRequest)
		return
	}

	requestLogger(r).Info("Payment status requested", zap.String("order_id", orderID))

	status, err := h.svc.CheckStatus(r.Context(), orderID)
	if err != nil {
		var upstream *payment.UpstreamError
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			utils.WriteJSONError(w, fmt.Sprintf("Order with ID '%s' not found.", orderID), http.StatusNotFound)
		case errors.As(err, &upstream):
			utils.WriteJSON(w, http.StatusBadGateway, upstreamErrorResponse{
				Error:          "Upstream Iute API returned an error.",
				IuteStatusCode: upstream.StatusCode,
				IuteResponse:   upstream.Payload,
			})
		default:
			utils.WriteJSONError(w, "Failed to communicate with Iute API", http.StatusInternalServerError)
		}
		return
	}

	// the gateway payload goes back verbatim
	utils.WriteJSON(w, http.StatusOK, status.Raw)
}

// requestLogger tags the request logger with the authenticated caller, if any.
func requestLogger(r *http.Request) *zap.Logger {
	log := logger.FromCtx(r.Context())
	if claims, ok := middleware.ClaimsFrom(r.Context()); ok {
		log = log.With(zap.String("caller", claims.Email), zap.String("subject", claims.Subject))
	}
	return log
}
