// Package app собирает витрину из конфигурации и управляет её жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run поднимает HTTP API и сервер метрик и блокируется до отмены ctx.
// При отмене возвращает ctx.Err() после корректной остановки.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.ShopTimezone)
	if err != nil {
		return fmt.Errorf("load shop timezone %q: %w", cfg.ShopTimezone, err)
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	defer func() {
		stopWorkers()
		workers.Wait()
	}()

	kafkaProducer := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
	defer closeKafka(kafkaProducer, logger)
	startOutboxWorker(workersCtx, &workers, deps.Outbox, kafkaProducer, cfg, logger)

	idempotencyMetrics := metrics.NewIdempotencyMetrics(nil)
	cleanup := idempotency.NewCleanupWorker(deps.Idempotency, idempotency.CleanupConfig{
		Interval:  cfg.IdempotencyCleanupInterval,
		BatchSize: cfg.IdempotencyCleanupBatchSize,
		Logger:    logger.WithField("component", "idempotency-cleanup"),
		Metrics:   idempotencyMetrics,
	})
	workers.Add(1)
	go func() {
		defer workers.Done()
		cleanup.Run(workersCtx)
	}()

	checkoutMetrics := metrics.NewCheckoutMetrics()
	orchestrator := createOrchestrator(
		deps,
		newPaymentService(cfg, logger),
		newNotifier(cfg, checkoutMetrics, logger),
		checkoutMetrics,
		kafkaProducer != nil,
		cfg,
		loc,
		logger,
	)

	router := httpapi.NewRouter(httpapi.Dependencies{
		Catalog:  deps.Catalog,
		Carts:    cart.NewManager(deps.Carts, logger.WithField("component", "cart")),
		Checkout: orchestrator,
		Timeline: deps.Timeline,
		Guard:    idempotency.NewGuard(deps.Idempotency, cfg.IdempotencyTTL, idempotencyMetrics, logger.WithField("component", "idempotency-guard")),
		Metrics:  metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:   logger.WithField("component", "httpapi"),
		Location: loc,
	})

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.Checkers {
		healthHandler.RegisterChecker(name, checker, true)
	}
	metricsSrv, err := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	if err != nil {
		return err
	}
	defer shutdownHTTP(metricsSrv, logger)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает /metrics, /healthz, /livez и /readyz.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	srv := &http.Server{Addr: lis.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
