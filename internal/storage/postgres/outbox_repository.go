package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type outboxStatus string

const (
	outboxSent   outboxStatus = "sent"
	outboxFailed outboxStatus = "failed"

	defaultOutboxBatch = 100
)

const (
	// Повторная постановка с тем же id игнорируется.
	outboxInsertSQL = `INSERT INTO outbox_messages
    (id, aggregate_type, aggregate_id, event_type, payload, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6, $6)
ON CONFLICT (id) DO NOTHING`

	outboxPendingSQL = `SELECT id, aggregate_type, aggregate_id, event_type, payload
FROM outbox_messages
WHERE status = 'pending'
ORDER BY created_at, id
LIMIT $1`

	outboxStatsSQL = `SELECT COUNT(*), MIN(created_at) FROM outbox_messages WHERE status = 'pending'`

	outboxSettleSQL = `UPDATE outbox_messages
SET status = $1, attempt_count = attempt_count + 1, updated_at = $2
WHERE id = $3`
)

// OutboxRepository хранит checkout-события до публикации в Kafka.
type OutboxRepository struct {
	db    *sql.DB
	clock func() time.Time
}

// NewOutboxRepository создаёт outbox поверх таблицы outbox_messages.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{db: store.DB(), clock: time.Now}
}

func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	payload := string(msg.Payload)
	if payload == "" {
		payload = "{}"
	}

	ctx, cancel := opContext()
	defer cancel()
	_, err := r.db.ExecContext(ctx, outboxInsertSQL,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, payload, r.clock().UTC())
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("insert outbox %s for %s: %w", msg.EventType, msg.AggregateID, err)
	}
	return msg, nil
}

// PullPending возвращает до limit неопубликованных событий, старые первыми.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = defaultOutboxBatch
	}

	ctx, cancel := opContext()
	defer cancel()
	rows, err := r.db.QueryContext(ctx, outboxPendingSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending outbox: %w", err)
	}
	defer rows.Close()

	var batch []domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateType, &m.AggregateID, &m.EventType, &m.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, m)
	}
	return batch, rows.Err()
}

func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := opContext()
	defer cancel()

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, outboxStatsSQL).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(id string) error   { return r.settle(id, outboxSent) }
func (r *OutboxRepository) MarkFailed(id string) error { return r.settle(id, outboxFailed) }

// settle переводит событие в конечный статус; неизвестный id даёт ErrOutboxPublish.
func (r *OutboxRepository) settle(id string, status outboxStatus) error {
	ctx, cancel := opContext()
	defer cancel()

	n, err := execCount(ctx, r.db, outboxSettleSQL, string(status), r.clock().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox %s %s: %w", id, status, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox message %s: %w", id, domain.ErrOutboxPublish)
	}
	return nil
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
