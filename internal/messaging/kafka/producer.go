package kafka

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer отправляет события витрины в Kafka синхронно.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам с идемпотентной доставкой.
func NewProducer(brokers []string, clientID string, logger *log.Entry) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, producerConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("kafka producer for %v: %w", brokers, err)
	}
	return newProducer(sp, logger), nil
}

// producerConfig требует подтверждения от всех реплик; идемпотентность
// sarama допускает только с одним запросом в полёте.
func producerConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.Idempotent = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

func newProducer(sp sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{sync: sp, logger: logger}
}

// PublishEvent кодирует event в JSON и отправляет с заголовками.
func (p *Producer) PublishEvent(topic, key string, event any, headers map[string]string) error {
	msg, err := encodeMessage(topic, key, event, headers)
	if err != nil {
		return err
	}

	fields := log.Fields{"topic": topic, "key": key}
	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}
	fields["partition"], fields["offset"] = partition, offset
	p.logger.WithFields(fields).Debug("kafka message sent")
	return nil
}

// encodeMessage раскладывает заголовки в порядке ключей, чтобы сообщения были воспроизводимы.
func encodeMessage(topic, key string, event any, headers map[string]string) (*sarama.ProducerMessage, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event for %s: %w", topic, err)
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(body),
		Timestamp: time.Now(),
		Headers:   make([]sarama.RecordHeader, 0, len(names)),
	}
	for _, name := range names {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(headers[name])})
	}
	return msg, nil
}

func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
