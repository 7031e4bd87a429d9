package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        uint64
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// OutboxRepository — in-memory transactional outbox для checkout-событий.
type OutboxRepository struct {
	mu      sync.RWMutex
	seq     uint64
	records map[string]*outboxRecord
	now     func() time.Time
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		records: make(map[string]*outboxRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue сохраняет событие со статусом `pending`.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, exists := r.records[msg.ID]; exists {
		return msg, nil
	}
	r.seq++
	now := r.now()
	msg.Payload = append([]byte(nil), msg.Payload...)
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		seq:       r.seq,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений `pending` в порядке постановки.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingRecords()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого сообщения.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	pending := r.pendingRecords()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.mark(id, outboxStatusFailed)
}

// AllPending возвращает копию всех сообщений `pending`.
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	pending := r.pendingRecords()
	msgs := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		msgs = append(msgs, rec.msg)
	}
	return msgs
}

func (r *OutboxRepository) mark(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = r.now()
	return nil
}

func (r *OutboxRepository) pendingRecords() []outboxRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == outboxStatusPending {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
