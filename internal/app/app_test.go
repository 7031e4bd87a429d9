package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShopTimezone = "UTC"
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testConfig())
	require.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported storage driver")
}

func TestRun_UnknownTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.ShopTimezone = "Mars/Olympus_Mons"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shop timezone")
}

func TestNewDependencies_MemorySeedsDemoCatalog(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	products, err := deps.Catalog.ListProducts(context.Background())
	require.NoError(t, err)
	_, demo := DemoCatalog()
	require.Len(t, products, len(demo))
	require.Empty(t, deps.Checkers)
	require.NotNil(t, deps.Carts)
	require.NotNil(t, deps.Idempotency)
}

func TestNewDependencies_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	_, err := NewDependencies(context.Background(), cfg, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "open redis")
}

func TestDemoCatalog_ProductsReferenceCategories(t *testing.T) {
	categories, products := DemoCatalog()
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		known[c.ID] = true
	}
	for _, p := range products {
		require.True(t, known[p.CategoryID], "product %s has unknown category %s", p.ID, p.CategoryID)
		require.True(t, p.Price.IsPositive(), "product %s must have a price", p.ID)
	}
}

func TestNewPaymentService(t *testing.T) {
	logger := log.WithField("test", "payment")

	cfg := testConfig()
	cfg.PaymentProvider = PaymentProviderMock
	cfg.StripeCheckoutURL = "https://shop.example.test/paiement/"
	mock, ok := newPaymentService(cfg, logger).(*payment.MockService)
	require.True(t, ok)
	require.Equal(t, "https://shop.example.test/paiement/", mock.RedirectBase)

	cfg.PaymentProvider = PaymentProviderStripe
	_, ok = newPaymentService(cfg, logger).(*payment.StripeService)
	require.True(t, ok)
}

func TestKafkaDisabledWithoutBrokers(t *testing.T) {
	require.Nil(t, initKafkaProducer(nil, "storefront", log.WithField("test", "kafka")))
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestCreateOrchestrator(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer deps.Close()

	logger := log.WithField("test", "orchestrator")
	m := metrics.NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry())
	orch := createOrchestrator(deps, payment.NewMockService(), newNotifier(testConfig(), m, logger), m, false, testConfig(), time.UTC, logger)
	require.NotNil(t, orch)

	_, err = orch.OrderDetails(context.Background(), "missing")
	require.Error(t, err)
}

func TestMetricsServerServesHealth(t *testing.T) {
	logger := log.WithField("test", "http")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("redis", healthcheck.NewPingChecker("redis", func(context.Context) error {
		return errors.New("connection refused")
	}), true)

	srv, err := startMetricsServer(ctx, "127.0.0.1:0", logger, healthHandler)
	require.NoError(t, err)
	defer shutdownHTTP(srv, logger)
	addr := srv.Addr

	for path, want := range map[string]int{
		"/livez":   http.StatusOK,
		"/metrics": http.StatusOK,
		"/readyz":  http.StatusServiceUnavailable,
	} {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err, path)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		require.Equal(t, want, resp.StatusCode, path)
	}
}
