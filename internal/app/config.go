package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые хранилища каталога и заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Поддерживаемые платёжные провайдеры.
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderMock   = "mock"
)

// Config описывает настройки запуска витрины.
type Config struct {
	HTTPAddr         string
	MetricsAddr      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoCatalog заполняет in-memory каталог демонстрационными товарами.
	SeedDemoCatalog bool

	// RedisURL пустой — корзины живут в памяти процесса.
	RedisURL string
	CartTTL  time.Duration

	KafkaBrokers       []string
	KafkaClientID      string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	PaymentProvider   string
	StripeSecretKey   string
	StripeCheckoutURL string

	SendGridAPIKey   string
	EmailFrom        string
	EmailFromName    string
	StaffEmail       string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	StaffPhone       string
	NotifyEmailGap   time.Duration
	// NotifyTimeout — общий срок на уведомления одного заказа.
	NotifyTimeout time.Duration

	ShopTimezone        string
	CollaboratorTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:         ":8080",
		MetricsAddr:      ":9090",
		HTTPReadTimeout:  15 * time.Second,
		HTTPWriteTimeout: 45 * time.Second,

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedDemoCatalog:     true,

		CartTTL: 30 * 24 * time.Hour,

		KafkaClientID:      "storefront",
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		PaymentProvider: PaymentProviderStripe,
		EmailFromName:   "Boucherie",
		NotifyEmailGap:  500 * time.Millisecond,
		NotifyTimeout:   8 * time.Second,

		ShopTimezone:        "Europe/Paris",
		CollaboratorTimeout: 10 * time.Second,
	}
}

// LoadConfig накладывает переменные окружения на DefaultConfig.
// Ошибки разбора собираются целиком, чтобы оператор увидел их все сразу.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	p := envParser{getenv: getenv}

	p.str("STOREFRONT_HTTP_ADDR", &cfg.HTTPAddr)
	p.str("STOREFRONT_METRICS_ADDR", &cfg.MetricsAddr)
	p.duration("STOREFRONT_HTTP_READ_TIMEOUT", &cfg.HTTPReadTimeout)
	p.duration("STOREFRONT_HTTP_WRITE_TIMEOUT", &cfg.HTTPWriteTimeout)

	p.str("STOREFRONT_POSTGRES_DSN", &cfg.PostgresDSN)
	if cfg.PostgresDSN != "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	p.str("STOREFRONT_STORAGE", &cfg.StorageDriver)
	p.boolean("STOREFRONT_POSTGRES_AUTO_MIGRATE", &cfg.PostgresAutoMigrate)
	p.boolean("STOREFRONT_SEED_DEMO_CATALOG", &cfg.SeedDemoCatalog)

	p.str("STOREFRONT_REDIS_URL", &cfg.RedisURL)
	p.duration("STOREFRONT_CART_TTL", &cfg.CartTTL)

	if v := strings.TrimSpace(getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	p.str("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	p.duration("OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	p.integer("OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	p.integer("OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	p.duration("OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)

	p.duration("IDEMPOTENCY_TTL", &cfg.IdempotencyTTL)
	p.duration("IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	p.integer("IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	p.str("PAYMENT_PROVIDER", &cfg.PaymentProvider)
	p.str("STRIPE_SECRET_KEY", &cfg.StripeSecretKey)
	p.str("STRIPE_CHECKOUT_URL", &cfg.StripeCheckoutURL)

	p.str("SENDGRID_API_KEY", &cfg.SendGridAPIKey)
	p.str("EMAIL_FROM", &cfg.EmailFrom)
	p.str("EMAIL_FROM_NAME", &cfg.EmailFromName)
	p.str("STAFF_EMAIL", &cfg.StaffEmail)
	p.str("TWILIO_ACCOUNT_SID", &cfg.TwilioAccountSID)
	p.str("TWILIO_AUTH_TOKEN", &cfg.TwilioAuthToken)
	p.str("TWILIO_FROM_NUMBER", &cfg.TwilioFromNumber)
	p.str("STAFF_PHONE", &cfg.StaffPhone)
	p.duration("NOTIFY_EMAIL_GAP", &cfg.NotifyEmailGap)
	p.duration("NOTIFY_TIMEOUT", &cfg.NotifyTimeout)

	p.str("SHOP_TIMEZONE", &cfg.ShopTimezone)
	p.duration("COLLABORATOR_TIMEOUT", &cfg.CollaboratorTimeout)

	if err := errors.Join(p.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires STOREFRONT_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	switch c.PaymentProvider {
	case PaymentProviderStripe, PaymentProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unsupported payment provider %q", c.PaymentProvider))
	}
	if c.NotifyEmailGap < 0 {
		errs = append(errs, errors.New("NOTIFY_EMAIL_GAP must not be negative"))
	}
	if c.CollaboratorTimeout <= 0 {
		errs = append(errs, errors.New("COLLABORATOR_TIMEOUT must be positive"))
	}
	if c.NotifyTimeout <= 0 {
		errs = append(errs, errors.New("NOTIFY_TIMEOUT must be positive"))
	}
	if budget := c.CheckoutBudget(); c.HTTPWriteTimeout <= budget {
		errs = append(errs, fmt.Errorf("STOREFRONT_HTTP_WRITE_TIMEOUT (%s) must exceed the checkout budget %s", c.HTTPWriteTimeout, budget))
	}
	if c.OutboxBatchSize <= 0 || c.OutboxMaxAttempts <= 0 || c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("batch sizes and attempts must be positive"))
	}
	return errors.Join(errs...)
}

// CheckoutBudget — худшее время оформления: запись заказа, платёжная сессия,
// чтение позиций и уведомления. Ответ должен успеть уйти до WriteTimeout.
func (c Config) CheckoutBudget() time.Duration {
	return 3*c.CollaboratorTimeout + c.NotifyTimeout
}

type envParser struct {
	getenv func(string) string
	errs   []error
}

func (p *envParser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(p.getenv(key))
	return v, v != ""
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.lookup(key); ok {
		*dst = v
	}
}

func (p *envParser) duration(key string, dst *time.Duration) {
	if v, ok := p.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
}

func (p *envParser) integer(key string, dst *int) {
	if v, ok := p.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
}

func (p *envParser) boolean(key string, dst *bool) {
	if v, ok := p.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
