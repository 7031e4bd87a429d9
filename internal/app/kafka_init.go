package app

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если брокеры заданы.
// Ошибка подключения не фатальна: витрина работает без публикации событий.
func initKafkaProducer(brokers []string, clientID string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers, clientID, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// startOutboxWorker запускает публикацию outbox в Kafka; DLQ получает сообщения после исчерпания попыток.
func startOutboxWorker(ctx context.Context, wg *sync.WaitGroup, repo domain.OutboxRepository, producer *kafka.Producer, cfg Config, logger *log.Entry) {
	if producer == nil || repo == nil {
		return
	}
	worker := outbox.NewWorker(
		repo,
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(nil)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
}
