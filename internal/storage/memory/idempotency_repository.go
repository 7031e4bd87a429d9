package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultIdempotencyTTL — срок хранения ответа на оформление, если он не задан явно.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRepository хранит ключи оформления заказа в памяти.
type IdempotencyRepository struct {
	mu    sync.RWMutex
	items map[string]domain.IdempotencyRecord
	now   func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() *IdempotencyRepository {
	return &IdempotencyRepository{
		items: make(map[string]domain.IdempotencyRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateProcessing резервирует ключ. Ключ после неудачного оформления или с истёкшим
// сроком переиспользуется; ключ в работе или с готовым ответом даёт ErrIdempotencyKeyAlreadyExists.
func (r *IdempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)

	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(DefaultIdempotencyTTL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[key]
	if ok && !existing.Expired(now) {
		if existing.RequestHash != requestHash {
			return cloneIdempotencyRecord(existing), domain.ErrIdempotencyHashMismatch
		}
		if existing.Status != domain.IdempotencyStatusFailed {
			return cloneIdempotencyRecord(existing), domain.ErrIdempotencyKeyAlreadyExists
		}
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.items[key] = record
	return cloneIdempotencyRecord(record), nil
}

// Get возвращает запись или ErrIdempotencyKeyNotFound.
func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.items[key]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	return cloneIdempotencyRecord(record), nil
}

// MarkDone сохраняет ответ для повторной выдачи.
func (r *IdempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed освобождает ключ для повторной попытки.
func (r *IdempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired удаляет до limit записей с TTL не позже before, начиная с самых старых.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := make([]domain.IdempotencyRecord, 0)
	for _, record := range r.items {
		if record.Expired(before) {
			expired = append(expired, record)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].TTLAt.Before(expired[j].TTLAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	for _, record := range expired {
		delete(r.items, record.Key)
	}
	return len(expired), nil
}

func (r *IdempotencyRepository) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.items[key]
	if !ok {
		return domain.ErrIdempotencyKeyNotFound
	}

	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = r.now()
	r.items[key] = record
	return nil
}

func cloneIdempotencyRecord(src domain.IdempotencyRecord) domain.IdempotencyRecord {
	dst := src
	dst.ResponseBody = append([]byte(nil), src.ResponseBody...)
	return dst
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
