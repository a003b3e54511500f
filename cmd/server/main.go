package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dionisbeci/iute-integration/internal/auth"
	"github.com/dionisbeci/iute-integration/internal/config"
	"github.com/dionisbeci/iute-integration/internal/db"
	"github.com/dionisbeci/iute-integration/internal/events"
	"github.com/dionisbeci/iute-integration/internal/logger"
	"github.com/dionisbeci/iute-integration/internal/metrics"
	"github.com/dionisbeci/iute-integration/internal/middleware"
	"github.com/dionisbeci/iute-integration/internal/order"
	"github.com/dionisbeci/iute-integration/internal/payment"
	"github.com/dionisbeci/iute-integration/internal/payment/webhook"
	"github.com/dionisbeci/iute-integration/internal/transport"

	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = serve
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newServer(ctx, cfg, database)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer app.Close()

	go app.limiter.Run(time.Minute, ctx.Done())

	logger.L().Info("Iute integration server starting",
		zap.String("port", cfg.AppPort),
		zap.String("env", cfg.AppEnv),
		zap.Bool("auth_enabled", cfg.AuthEnabled),
	)
	return startServerFunc(ctx, ":"+cfg.AppPort, app)
}

type server struct {
	handler   http.Handler
	limiter   *middleware.RateLimiter
	publisher events.Publisher
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *server) Close() error {
	return s.publisher.Close()
}

// newServer wires every component. Background work it starts (JWKS
// refresh) stops when ctx is done.
func newServer(ctx context.Context, cfg *config.Config, database *sql.DB) (*server, error) {
	protect := func(h http.Handler) http.Handler { return h }
	if cfg.AuthEnabled {
		jwks, err := auth.NewJWKS(ctx, cfg.OIDCJWKSURL, cfg.SignatureTimeout)
		if err != nil {
			return nil, err
		}
		protect = middleware.BearerAuth(auth.NewIDTokenVerifier(jwks, cfg.OIDCAudience, nil))
	}

	m := metrics.New()

	gateway := payment.NewIuteGateway(payment.GatewayConfig{
		BaseURL:       cfg.IuteBaseURL,
		AuthToken:     cfg.IuteAuthToken,
		PosID:         cfg.PosID,
		CreateTimeout: cfg.GatewayTimeout,
		StatusTimeout: cfg.StatusTimeout,
	}, m)

	keys := payment.NewPublicKeyFetcher(cfg.PublicKeyURL(), cfg.SignatureTimeout, cfg.PublicKeyCacheTTL)
	verifier := payment.NewSignatureVerifier(keys, m)
	publisher := events.New(cfg.KafkaBrokers, cfg.KafkaTopic)

	orderSvc := order.NewService(order.NewRepository(database), gateway, verifier, publisher, m, order.Policy{
		RejectTerminalUpdates: cfg.RejectTerminalUpdates,
		StoreTimeout:          cfg.StoreTimeout,
	})

	payments := transport.NewPaymentHandler(orderSvc)
	hooks := webhook.NewWebhookHandler(orderSvc)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	var pinger transport.Pinger
	if database != nil {
		pinger = database
	}

	handler := setupRouter(routes{
		createPayment: payments.CreateOrUpdate,
		paymentStatus: payments.Status,
		confirmation:  hooks.Confirmation,
		cancellation:  hooks.Cancellation,
		health:        transport.Health(pinger),
		metrics:       m,
		protect:       protect,
		limit:         limiter.Middleware,
	})

	return &server{handler: handler, limiter: limiter, publisher: publisher}, nil
}

type routes struct {
	createPayment http.HandlerFunc
	paymentStatus http.HandlerFunc
	confirmation  http.HandlerFunc
	cancellation  http.HandlerFunc
	health        http.HandlerFunc

	metrics *metrics.Metrics
	protect func(http.Handler) http.Handler
	limit   func(http.Handler) http.Handler
}

func setupRouter(rt routes) http.Handler {
	pos := func(h http.HandlerFunc) http.Handler {
		return rt.limit(rt.protect(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", transport.Index)
	mux.HandleFunc("GET /health", rt.health)
	mux.Handle("GET /metrics", rt.metrics.Handler())

	mux.Handle("POST /create_or_update_payment", pos(rt.createPayment))
	mux.Handle("GET /payment_status/{orderId}", pos(rt.paymentStatus))

	// signature verified, never bearer-authenticated
	mux.HandleFunc("POST /iute/confirmation", rt.confirmation)
	mux.HandleFunc("POST /iute/cancellation", rt.cancellation)

	// Instrument wraps the mux directly so it sees the matched pattern
	var h http.Handler = middleware.Instrument(rt.metrics)(mux)
	h = middleware.Recover(h)
	h = logger.LoggingMiddleware(h)
	h = logger.RequestIDMiddleware(h)
	return h
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L().Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
