package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		require.Equal(t, "order-123", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var envelope OrderEvent
		require.NoError(t, json.Unmarshal(value, &envelope))
		require.Equal(t, EventTypeCheckoutCompleted, envelope.EventType)
		require.JSONEq(t, `{"payment_method":"in_store"}`, string(envelope.Payload))
		return nil
	})

	publisher := NewOutboxPublisher(newProducer(mockProducer, nil), "")

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     domain.EventCheckoutCompleted,
		Payload:       []byte(`{"payment_method":"in_store"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(newProducer(mockProducer, nil), TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:          "outbox-2",
		AggregateID: "order-234",
		EventType:   domain.EventOrderCreated,
		Payload:     []byte(`{}`),
	})
	require.ErrorIs(t, err, domain.ErrOutboxPublish)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_DLQHeaders(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicDeadLetterQueue, msg.Topic)
		found := false
		for _, h := range msg.Headers {
			if string(h.Key) == HeaderOriginalTopic {
				found = string(h.Value) == TopicOrderEvents
			}
		}
		require.True(t, found, "dlq message must carry original topic header")
		return nil
	})

	publisher := NewOutboxPublisher(newProducer(mockProducer, nil), TopicDeadLetterQueue)
	require.NoError(t, publisher.Publish(domain.OutboxMessage{ID: "outbox-3", Payload: []byte(`{}`)}))
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	require.ErrorIs(t, publisher.Publish(domain.OutboxMessage{ID: "outbox-4"}), domain.ErrOutboxPublish)
}
