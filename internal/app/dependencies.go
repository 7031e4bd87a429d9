package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// Dependencies содержит хранилища, выбранные по конфигурации.
type Dependencies struct {
	Catalog     domain.CatalogRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Timeline    domain.TimelineRepository
	Idempotency domain.IdempotencyRepository
	Carts       domain.KeyValueStore

	// Checkers регистрируются в readiness-проверке.
	Checkers map[string]healthcheck.Checker

	closers []func() error
	logger  *log.Entry
}

// Close освобождает соединения в обратном порядке открытия.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.WithError(err).Warn("failed to close dependency")
		}
	}
	d.closers = nil
}

// NewDependencies открывает хранилище заказов и корзин.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{
		Checkers: make(map[string]healthcheck.Checker),
		logger:   logger,
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	if err := deps.initCarts(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) initStorage(ctx context.Context, cfg Config) error {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		shop := memory.NewShopRepository()
		if cfg.SeedDemoCatalog {
			categories, products := DemoCatalog()
			shop.SeedCategories(categories...)
			shop.SeedProducts(products...)
		}
		d.Catalog = shop
		d.Orders = shop
		d.Outbox = memory.NewOutboxRepository()
		d.Timeline = memory.NewTimelineRepository()
		d.Idempotency = memory.NewIdempotencyRepository()
		d.logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		store, err := postgres.OpenWithConfig(ctx, cfg.PostgresDSN, postgres.PoolConfig{}, d.logger.WithField("storage", "postgres"))
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		d.closers = append(d.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		d.Catalog = postgres.NewCatalogRepository(store)
		d.Orders = postgres.NewOrderRepository(store)
		d.Outbox = postgres.NewOutboxRepository(store)
		d.Timeline = postgres.NewTimelineRepository(store)
		d.Idempotency = postgres.NewIdempotencyRepository(store)
		d.Checkers["postgres"] = healthcheck.NewPingChecker("postgres", store.Ping)
		d.logger.Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *Dependencies) initCarts(ctx context.Context, cfg Config) error {
	if cfg.RedisURL == "" {
		d.Carts = memory.NewKeyValueStore()
		return nil
	}
	kv, err := redisstore.Open(ctx, cfg.RedisURL, cfg.CartTTL, d.logger.WithField("storage", "redis"))
	if err != nil {
		return fmt.Errorf("open redis: %w", err)
	}
	d.closers = append(d.closers, kv.Close)
	d.Carts = kv
	d.Checkers["redis"] = healthcheck.NewPingChecker("redis", kv.Ping)
	return nil
}
