package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CatalogRepository — чтение каталога.
type CatalogRepository interface {
	ListProducts(ctx context.Context) ([]Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateOrder атомарно сохраняет заказ, его позиции и списывает остатки.
	// Если остатка не хватает, возвращает *InsufficientStockError и ничего не сохраняет.
	CreateOrder(ctx context.Context, order Order) error
	// GetOrder возвращает заказ с позициями или ErrOrderNotFound.
	GetOrder(ctx context.Context, id string) (Order, error)
	// ListLineDetails возвращает позиции заказа с названиями товаров.
	ListLineDetails(ctx context.Context, orderID string) ([]OrderLineDetail, error)
}

// PaymentSessionRequest — данные для создания платёжной сессии.
type PaymentSessionRequest struct {
	Amount        decimal.Decimal
	OrderID       string
	CustomerEmail string
	CustomerName  string
}

// PaymentSession — созданная у провайдера сессия оплаты.
type PaymentSession struct {
	ID           string
	ClientSecret string
}

// PaymentService описывает взаимодействие с платёжным провайдером.
type PaymentService interface {
	// CreatePaymentSession создаёт сессию оплаты по заказу.
	CreatePaymentSession(ctx context.Context, req PaymentSessionRequest) (PaymentSession, error)
	// RedirectToPayment возвращает адрес, на который клиент уходит для оплаты.
	RedirectToPayment(ctx context.Context, session PaymentSession) (string, error)
}

// EmailSender отправляет письмо.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

// SMSSender отправляет SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Notifier рассылает уведомления о заказе. Ошибки наружу не возвращаются.
type Notifier interface {
	Notify(ctx context.Context, details OrderDetails)
}

// KeyValueStore — простое хранилище строк по ключу для корзины.
type KeyValueStore interface {
	// Get возвращает значение или ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
