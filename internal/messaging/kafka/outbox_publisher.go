package kafka

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения оформления в Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish отправляет событие с ключом заказа, чтобы события одного заказа шли в одну партицию.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka outbox publisher is not initialized", domain.ErrOutboxPublish)
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	eventType := EventTypeFor(event.EventType)
	envelope := OrderEvent{
		ID:            event.ID,
		EventType:     eventType,
		AggregateType: event.AggregateType,
		OrderID:       event.AggregateID,
		Payload:       event.Payload,
		PublishedAt:   p.now(),
	}
	headers := map[string]string{
		HeaderEventType: string(eventType),
		HeaderOutboxID:  event.ID,
	}
	if p.topic == TopicDeadLetterQueue {
		headers[HeaderOriginalTopic] = TopicOrderEvents
	}

	if err := p.producer.PublishEvent(p.topic, key, envelope, headers); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutboxPublish, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
