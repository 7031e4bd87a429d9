package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType — тип события заказа в Kafka.
type EventType string

const (
	EventTypeOrderCreated          EventType = "order.created"
	EventTypePaymentSessionCreated EventType = "payment.session_created"
	EventTypePaymentFallback       EventType = "payment.fallback"
	EventTypeCheckoutCompleted     EventType = "checkout.completed"
	EventTypeUnknown               EventType = "order.unknown"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
)

var outboxEventTypes = map[string]EventType{
	domain.EventOrderCreated:          EventTypeOrderCreated,
	domain.EventPaymentSessionCreated: EventTypePaymentSessionCreated,
	domain.EventPaymentFallback:       EventTypePaymentFallback,
	domain.EventCheckoutCompleted:     EventTypeCheckoutCompleted,
}

// EventTypeFor переводит тип outbox-события в тип Kafka-события.
func EventTypeFor(outboxType string) EventType {
	if t, ok := outboxEventTypes[outboxType]; ok {
		return t
	}
	return EventTypeUnknown
}

// OrderEvent — конверт события заказа в топике.
type OrderEvent struct {
	ID            string    `json:"id"`
	EventType     EventType `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	OrderID       string    `json:"order_id"`
	// Payload — исходные данные события из outbox.
	Payload     []byte    `json:"payload"`
	PublishedAt time.Time `json:"published_at"`
}
