package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// CleanupConfig — параметры очистки; нулевые значения заменяются значениями по умолчанию.
type CleanupConfig struct {
	Interval  time.Duration
	BatchSize int
	Logger    *log.Entry
	Metrics   *metrics.IdempotencyMetrics
	Now       func() time.Time
}

func (c CleanupConfig) normalized() CleanupConfig {
	if c.Interval <= 0 {
		c.Interval = defaultCleanupInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultCleanupBatchSize
	}
	if c.Logger == nil {
		c.Logger = log.WithField("component", "idempotency-cleanup")
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewIdempotencyMetrics(nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// CleanupWorker удаляет просроченные ключи Idempotency-Key.
type CleanupWorker struct {
	repo domain.IdempotencyRepository
	cfg  CleanupConfig
}

func NewCleanupWorker(repo domain.IdempotencyRepository, cfg CleanupConfig) *CleanupWorker {
	return &CleanupWorker{repo: repo, cfg: cfg.normalized()}
}

// Run чистит ключи при старте и затем по таймеру, пока ctx не отменён.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.cfg.Logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, time.Time{})
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.cfg.Metrics.RecordCleanupRun("error", deleted)
		w.cfg.Logger.WithError(err).Warn("idempotency cleanup failed")
	default:
		w.cfg.Metrics.RecordCleanupRun("ok", deleted)
		if deleted > 0 {
			w.cfg.Logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
		}
	}
}

// DeleteExpired удаляет ключи с ttl <= before пачками, пока пачка заполняется целиком.
// Нулевой before означает текущее время.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.cfg.Now()
	}

	total := 0
	for ctx.Err() == nil {
		n, err := w.repo.DeleteExpired(before, w.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		total += n
		w.cfg.Metrics.AddDeleted(n)
		if n < w.cfg.BatchSize {
			return total, nil
		}
	}
	return total, ctx.Err()
}
