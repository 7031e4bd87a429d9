// Package outbox переносит checkout-события из outbox-таблицы в брокер.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = time.Minute
)

// Значения label result у метрики попыток.
const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultDLQFailed  = "dlq_failed"
)

// BatchResult — итог одного прохода по outbox.
type BatchResult struct {
	Sent   int
	Failed int
}

// Worker публикует pending-события с повторами; исчерпавшие попытки уходят в DLQ.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher

	logger  *log.Entry
	metrics *metrics.OutboxMetrics
	now     func() time.Time

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option { return func(w *Worker) { w.logger = logger } }

func WithMetrics(m *metrics.OutboxMetrics) Option { return func(w *Worker) { w.metrics = m } }

// WithDLQPublisher задаёт получателя событий, которые не удалось доставить.
func WithDLQPublisher(p domain.OutboxPublisher) Option { return func(w *Worker) { w.dlq = p } }

func WithPollInterval(d time.Duration) Option { return func(w *Worker) { w.pollInterval = d } }

func WithBatchSize(n int) Option { return func(w *Worker) { w.batchSize = n } }

// WithMaxAttempts задаёт число попыток публикации одного события за проход.
func WithMaxAttempts(n int) Option { return func(w *Worker) { w.maxAttempts = n } }

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(d time.Duration) Option { return func(w *Worker) { w.retryBaseDelay = d } }

func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	if w.metrics == nil {
		w.metrics = metrics.NewOutboxMetrics(nil)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.maxAttempts <= 0 {
		w.maxAttempts = defaultMaxAttempts
	}
	if w.retryBaseDelay < 0 {
		w.retryBaseDelay = 0
	}
	return w
}

// Run обрабатывает outbox сразу и затем раз в pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker disabled: no repository or publisher")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce публикует одну пачку. При отмене ctx необработанные события остаются pending.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	var res BatchResult
	if ctx.Err() != nil {
		return res
	}
	defer w.refreshBacklog()

	batch, err := w.repo.PullPending(w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("outbox pull failed")
		return res
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			break
		}
		err := w.deliver(ctx, msg)
		if err != nil && ctx.Err() != nil {
			break
		}
		w.settle(msg, err, &res)
	}

	if len(batch) > 0 {
		w.logger.WithFields(log.Fields{"sent": res.Sent, "failed": res.Failed}).Debug("outbox batch done")
	}
	return res
}

// settle фиксирует итог доставки в репозитории.
func (w *Worker) settle(msg domain.OutboxMessage, deliverErr error, res *BatchResult) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"order_id":   msg.AggregateID,
		"event_type": msg.EventType,
	})

	if deliverErr == nil {
		res.Sent++
		if err := w.repo.MarkSent(msg.ID); err != nil {
			entry.WithError(err).Warn("outbox mark sent failed")
		}
		return
	}

	res.Failed++
	w.metrics.RecordAttempt(resultFailed)
	entry.WithError(deliverErr).Error("outbox event undeliverable")
	if err := w.deadLetter(msg, deliverErr); err != nil {
		w.metrics.RecordAttempt(resultDLQFailed)
		entry.WithError(err).Warn("outbox dead letter failed")
	}
	if err := w.repo.MarkFailed(msg.ID); err != nil {
		entry.WithError(err).Warn("outbox mark failed failed")
	}
}

func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.publisher.Publish(msg); err == nil {
			w.metrics.RecordAttempt(resultSent)
			return nil
		}
		w.metrics.RecordAttempt(resultRetryError)
		if attempt == w.maxAttempts {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}
		if pause := w.retryBackoff(attempt); pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
}

// retryBackoff — пауза после attempt-й неудачи: base, 2*base, 4*base... не больше maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	if w.retryBaseDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) refreshBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("outbox stats failed")
		return
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// deadLetterEnvelope — тело сообщения в DLQ.
type deadLetterEnvelope struct {
	OutboxID     string          `json:"outbox_id"`
	OrderID      string          `json:"order_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	PublishError string          `json:"publish_error"`
	FailedAt     time.Time       `json:"dlq_published_at"`
}

func (w *Worker) deadLetter(msg domain.OutboxMessage, cause error) error {
	if w.dlq == nil {
		return nil
	}
	payload := json.RawMessage(msg.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage(`null`)
	}
	body, err := json.Marshal(deadLetterEnvelope{
		OutboxID:     msg.ID,
		OrderID:      msg.AggregateID,
		EventType:    msg.EventType,
		Payload:      payload,
		PublishError: cause.Error(),
		FailedAt:     w.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	dead := msg
	dead.Payload = body
	return w.dlq.Publish(dead)
}
