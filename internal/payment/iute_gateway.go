package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/metrics"

	"go.uber.org/zap"
)

const (
	orderPath  = "/api/v1/physical-api-partners/order"
	statusPath = "/api/v1/physical-api-partners/orders/%s/status"

	maxResponseBytes = 1 << 20
)

type GatewayConfig struct {
	BaseURL       string
	AuthToken     string
	PosID         string
	CreateTimeout time.Duration
	StatusTimeout time.Duration
}

type IuteGateway struct {
	baseURL       string
	authToken     string
	posID         string
	createTimeout time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	metrics       *metrics.Metrics
}

// ----------------- Constructor -----------------

func NewIuteGateway(cfg GatewayConfig, m *metrics.Metrics) *IuteGateway {
	if cfg.AuthToken == "" {
		logger.L().Warn("Iute auth token is empty")
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 15 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 10 * time.Second
	}

	return &IuteGateway{
		baseURL:       cfg.BaseURL,
		authToken:     cfg.AuthToken,
		posID:         cfg.PosID,
		createTimeout: cfg.CreateTimeout,
		statusTimeout: cfg.StatusTimeout,
		httpClient: &http.Client{
			// Per-call deadlines come from the context; this is the hard ceiling.
			Timeout: max(cfg.CreateTimeout, cfg.StatusTimeout),
		},
		metrics: m,
	}
}

// ----------------- CreateOrUpdateOrder -----------------

func (g *IuteGateway) CreateOrUpdateOrder(ctx context.Context, payload *OrderPayload) (*OrderResponse, error) {
	log := logger.ForOrder(ctx, payload.OrderID).With(
		zap.String("currency", payload.Currency),
		zap.String("amount", payload.TotalAmount.String()),
	)

	out := *payload
	out.Merchant.PosIdentifier = g.posID

	body, err := json.Marshal(&out)
	if err != nil {
		log.Error("Failed to marshal order payload", zap.Error(err))
		return nil, fmt.Errorf("marshal iute order: %w", err)
	}

	log.Info("Sending create/update order request to Iute")

	respBody, err := g.send(ctx, "create_or_update", g.createTimeout, http.MethodPost, g.baseURL+orderPath, body)
	if err != nil {
		return nil, err
	}

	if !json.Valid(respBody) {
		log.Error("Iute returned a non-JSON success body", zap.ByteString("response", respBody))
		g.metrics.GatewayCall("create_or_update", "malformed")
		return nil, ErrMalformedResponse
	}

	log.Info("Iute order accepted", zap.ByteString("response", respBody))
	g.metrics.GatewayCall("create_or_update", "ok")

	return &OrderResponse{Raw: json.RawMessage(respBody)}, nil
}

// ----------------- GetOrderStatus -----------------

func (g *IuteGateway) GetOrderStatus(ctx context.Context, orderID string) (*StatusResponse, error) {
	log := logger.ForOrder(ctx, orderID)

	endpoint := g.baseURL + fmt.Sprintf(statusPath, url.PathEscape(orderID)) +
		"?" + url.Values{"orderId": {orderID}}.Encode()

	log.Info("Checking order status with Iute")

	respBody, err := g.send(ctx, "status", g.statusTimeout, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(respBody, &fields); err != nil || fields == nil {
		log.Error("Iute status response is not a JSON object", zap.Error(err), zap.ByteString("response", respBody))
		g.metrics.GatewayCall("status", "malformed")
		return nil, fmt.Errorf("%w: status body is not a JSON object", ErrMalformedResponse)
	}

	status := StatusResponse{Raw: json.RawMessage(respBody)}
	if raw, ok := fields["status"]; ok {
		// non-string statuses are passed through but never mirrored
		_ = json.Unmarshal(raw, &status.Status)
	}

	log.Info("Iute order status received", zap.String("status", status.Status))
	g.metrics.GatewayCall("status", "ok")

	return &status, nil
}

// send performs exactly one HTTP call. It returns the body of a 2xx reply,
// an *UpstreamError for any other status, or ErrUpstreamUnreachable.
func (g *IuteGateway) send(ctx context.Context, op string, timeout time.Duration, method, endpoint string, body []byte) ([]byte, error) {
	log := logger.FromCtx(ctx).With(zap.String("operation", op), zap.String("url", endpoint))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}

	req.Header.Set("Authorization", g.authToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Error("Iute request failed", zap.Error(err))
		g.metrics.GatewayCall(op, "unreachable")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		g.metrics.GatewayCall(op, "unreachable")
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("Iute returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		g.metrics.GatewayCall(op, "rejected")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Payload:    decodeUpstreamPayload(resp.Header.Get("Content-Type"), respBody),
		}
	}

	return respBody, nil
}

func decodeUpstreamPayload(contentType string, body []byte) any {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		if json.Valid(body) {
			return json.RawMessage(body)
		}
	}
	return string(body)
}
