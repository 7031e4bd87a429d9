package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, TopicOrderEvents, msg.Topic)
		require.Len(t, msg.Headers, 1)
		require.Equal(t, HeaderEventType, string(msg.Headers[0].Key))
		return nil
	})

	err := producer.PublishEvent(TopicOrderEvents, "order-123", map[string]string{"status": "pending"}, map[string]string{
		HeaderEventType: string(EventTypeOrderCreated),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "order-123", struct{}{}, nil)
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int), nil)
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestEventTypeFor(t *testing.T) {
	require.Equal(t, EventTypeOrderCreated, EventTypeFor(domain.EventOrderCreated))
	require.Equal(t, EventTypePaymentFallback, EventTypeFor(domain.EventPaymentFallback))
	require.Equal(t, EventTypeCheckoutCompleted, EventTypeFor(domain.EventCheckoutCompleted))
	require.Equal(t, EventTypeUnknown, EventTypeFor("Whatever"))
}

func TestOrderEventJSON(t *testing.T) {
	raw, err := json.Marshal(OrderEvent{ID: "1", EventType: EventTypeOrderCreated, OrderID: "o-1", Payload: []byte(`{"a":1}`)})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"event_type":"order.created"`)
	require.Contains(t, string(raw), `"order_id":"o-1"`)
}

func TestEncodeMessage_SortsHeaders(t *testing.T) {
	msg, err := encodeMessage(TopicOrderEvents, "order-9", map[string]int{"n": 1}, map[string]string{
		"z-last":  "2",
		"a-first": "1",
	})
	require.NoError(t, err)
	require.Equal(t, "a-first", string(msg.Headers[0].Key))
	require.Equal(t, "z-last", string(msg.Headers[1].Key))

	key, err := msg.Key.Encode()
	require.NoError(t, err)
	require.Equal(t, "order-9", string(key))
}

func TestProducerConfig(t *testing.T) {
	cfg := producerConfig("storefront-test")
	require.Equal(t, "storefront-test", cfg.ClientID)
	require.True(t, cfg.Producer.Idempotent)
	require.Equal(t, sarama.WaitForAll, cfg.Producer.RequiredAcks)
	require.NoError(t, cfg.Validate())
}
