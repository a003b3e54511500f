package order

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dionisbeci/iute-integration/internal/events"
	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/metrics"
	"github.com/dionisbeci/iute-integration/internal/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	CreateOrUpdate(ctx context.Context, req *PaymentRequest) (*CreateResult, error)
	CheckStatus(ctx context.Context, orderID string) (*payment.StatusResponse, error)
	HandleConfirmation(ctx context.Context, body []byte, signature, timestamp string) error
	HandleCancellation(ctx context.Context, body []byte, signature, timestamp string) error
}

// Policy holds the behavior switches of the order service.
type Policy struct {
	// RejectTerminalUpdates refuses create/update for orders already
	// confirmed or cancelled in the store.
	RejectTerminalUpdates bool
	// StoreTimeout bounds every store call.
	StoreTimeout time.Duration
}

const defaultStoreTimeout = 5 * time.Second

type OrderService struct {
	repo      Repository
	gateway   payment.Gateway
	verifier  payment.Verifier
	publisher events.Publisher
	metrics   *metrics.Metrics
	policy    Policy
}

func NewService(
	repo Repository,
	gateway payment.Gateway,
	verifier payment.Verifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	policy Policy,
) *OrderService {
	if publisher == nil {
		publisher = events.Nop()
	}
	if policy.StoreTimeout <= 0 {
		policy.StoreTimeout = defaultStoreTimeout
	}
	return &OrderService{
		repo:      repo,
		gateway:   gateway,
		verifier:  verifier,
		publisher: publisher,
		metrics:   m,
		policy:    policy,
	}
}

// ----------------- CreateOrUpdate -----------------

func (s *OrderService) CreateOrUpdate(ctx context.Context, req *PaymentRequest) (*CreateResult, error) {
	if req == nil {
		return nil, &ValidationError{Message: "Request body must be a valid JSON."}
	}
	if err := req.Validate(); err != nil {
		logger.FromCtx(ctx).Warn("Rejected payment request", zap.Error(err))
		return nil, err
	}

	orderID := ""
	if req.OrderID != nil {
		orderID = strings.TrimSpace(*req.OrderID)
	}
	if orderID == "" {
		orderID = uuid.NewString()
	}
	log := logger.ForOrder(ctx, orderID)

	if s.policy.RejectTerminalUpdates {
		if err := s.ensureUpdatable(ctx, orderID); err != nil {
			return nil, err
		}
	}

	if req.Birthday != nil && strings.TrimSpace(*req.Birthday) != "" && ParseBirthday(*req.Birthday) == nil {
		log.Warn("Birthday is not in dd.MM.yyyy format, it will not be stored", zap.String("birthday", *req.Birthday))
	}

	// the gateway call outlives a disconnected client
	resp, err := s.gateway.CreateOrUpdateOrder(context.WithoutCancel(ctx), ToGatewayPayload(req, orderID))
	if err != nil {
		log.Error("Iute create/update failed", zap.Error(err))
		return nil, translateGatewayError(err)
	}

	o := ToOrder(req, orderID, resp.Raw)
	if err := s.persist(ctx, "upsert", func(ctx context.Context) error {
		return s.repo.Upsert(ctx, o)
	}); err == nil {
		s.publish(ctx, orderID, StatusPending, nil, "create_or_update")
	}

	return &CreateResult{OrderID: orderID, GatewayResponse: resp.Raw}, nil
}

func (s *OrderService) ensureUpdatable(ctx context.Context, orderID string) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	status, err := s.repo.GetStatus(storeCtx, orderID)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return nil
	case err != nil:
		// the store is best-effort; an unreadable row does not block the POS
		logger.ForOrder(ctx, orderID).Warn("Could not read stored status", zap.Error(err))
		return nil
	case status.IsTerminal():
		logger.ForOrder(ctx, orderID).Warn("Refusing update of finalized order", zap.String("status", string(status)))
		return ErrOrderFinalized
	}
	return nil
}

// ----------------- CheckStatus -----------------

func (s *OrderService) CheckStatus(ctx context.Context, orderID string) (*payment.StatusResponse, error) {
	log := logger.ForOrder(ctx, orderID)

	status, err := s.gateway.GetOrderStatus(context.WithoutCancel(ctx), orderID)
	if err != nil {
		var upstream *payment.UpstreamError
		if errors.As(err, &upstream) && upstream.NotFound() {
			log.Info("Iute does not know the order")
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		log.Error("Iute status check failed", zap.Error(err))
		return nil, translateGatewayError(err)
	}

	if known, ok := ParseStatus(status.Status); ok {
		s.applyStatus(ctx, orderID, known, nil, "status_check")
	} else {
		log.Warn("Not mirroring unknown Iute status", zap.String("status", status.Status))
	}

	return status, nil
}

// ----------------- Webhooks -----------------

func (s *OrderService) HandleConfirmation(ctx context.Context, body []byte, signature, timestamp string) error {
	evt, err := s.authenticate(ctx, body, signature, timestamp)
	if err != nil {
		return err
	}
	if evt.OrderID == "" {
		logger.FromCtx(ctx).Warn("Confirmation webhook without orderId")
		return nil
	}

	logger.ForOrder(ctx, string(evt.OrderID)).Info("Iute confirmed order")
	s.applyStatus(ctx, string(evt.OrderID), StatusConfirmed, nil, "webhook.confirmation")
	return nil
}

func (s *OrderService) HandleCancellation(ctx context.Context, body []byte, signature, timestamp string) error {
	evt, err := s.authenticate(ctx, body, signature, timestamp)
	if err != nil {
		return err
	}
	if evt.OrderID == "" {
		logger.FromCtx(ctx).Warn("Cancellation webhook without orderId")
		return nil
	}

	var reason *string
	if evt.Description != nil && strings.TrimSpace(*evt.Description) != "" {
		reason = evt.Description
	}

	logger.ForOrder(ctx, string(evt.OrderID)).Info("Iute cancelled order", zap.Stringp("reason", reason))
	s.applyStatus(ctx, string(evt.OrderID), StatusCancelled, reason, "webhook.cancellation")
	return nil
}

type webhookEvent struct {
	OrderID     flexibleID `json:"orderId"`
	Description *string    `json:"description"`
}

// flexibleID accepts an order id sent as a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexibleID(n.String())
	}
	return nil
}

func (s *OrderService) authenticate(ctx context.Context, body []byte, signature, timestamp string) (*webhookEvent, error) {
	if !s.verifier.Verify(ctx, body, signature, timestamp) {
		return nil, ErrInvalidSignature
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		logger.FromCtx(ctx).Warn("Signed webhook body is not valid JSON", zap.Error(err))
		return nil, &ValidationError{Message: "Request body must be a valid JSON."}
	}
	return &evt, nil
}

// ----------------- helpers -----------------

func (s *OrderService) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.policy.StoreTimeout)
}

// persist runs one store write. The error is logged and counted; callers
// only use it to decide whether to publish.
func (s *OrderService) persist(ctx context.Context, op string, write func(context.Context) error) error {
	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	if err := write(storeCtx); err != nil {
		logger.FromCtx(ctx).Error("Order store write failed", zap.String("operation", op), zap.Error(err))
		s.metrics.StoreFailure(op)
		return err
	}
	return nil
}

func (s *OrderService) applyStatus(ctx context.Context, orderID string, status OrderStatus, reason *string, source string) {
	log := logger.ForOrder(ctx, orderID).With(zap.String("status", string(status)))

	storeCtx, cancel := s.storeContext(ctx)
	defer cancel()

	err := s.repo.UpdateStatus(storeCtx, orderID, status, reason)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		log.Warn("No stored order to update")
		return
	case err != nil:
		log.Error("Order status update failed", zap.Error(err))
		s.metrics.StoreFailure("update_status")
		return
	}

	log.Info("Order status updated", zap.String("source", source))
	s.publish(ctx, orderID, status, reason, source)
}

func (s *OrderService) publish(ctx context.Context, orderID string, status OrderStatus, reason *string, source string) {
	err := s.publisher.PublishStatusChanged(context.WithoutCancel(ctx), events.StatusChanged{
		OrderID:    orderID,
		Status:     string(status),
		Reason:     reason,
		Source:     source,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		logger.ForOrder(ctx, orderID).Warn("Failed to publish status event", zap.Error(err))
	}
}

// translateGatewayError keeps *payment.UpstreamError for the caller and folds
// every other failure into ErrGatewayUnavailable.
func translateGatewayError(err error) error {
	var upstream *payment.UpstreamError
	if errors.As(err, &upstream) {
		return upstream
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
