package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultIdempotencyTTL = 24 * time.Hour

const (
	// Ключ занимается заново, если прошлый срок истёк или прошлая попытка
	// с тем же телом завершилась ошибкой.
	idempotencyClaimSQL = `INSERT INTO idempotency_keys AS k
    (key, request_hash, status, ttl_at, created_at, updated_at)
VALUES ($1, $2, 'processing', $3, $4, $4)
ON CONFLICT (key) DO UPDATE SET
    request_hash  = EXCLUDED.request_hash,
    response_body = NULL,
    http_status   = NULL,
    status        = 'processing',
    ttl_at        = EXCLUDED.ttl_at,
    created_at    = EXCLUDED.created_at,
    updated_at    = EXCLUDED.updated_at
WHERE k.ttl_at <= EXCLUDED.created_at
   OR (k.status = 'failed' AND k.request_hash = EXCLUDED.request_hash)`

	idempotencySelectSQL = `SELECT request_hash, response_body, http_status, status, ttl_at, created_at, updated_at
FROM idempotency_keys WHERE key = $1`

	idempotencyResolveSQL = `UPDATE idempotency_keys
SET status = $2, response_body = $3, http_status = $4, updated_at = $5
WHERE key = $1`

	idempotencyPurgeSQL = `DELETE FROM idempotency_keys WHERE ttl_at <= $1`

	idempotencyPurgeBatchSQL = `DELETE FROM idempotency_keys
WHERE key IN (SELECT key FROM idempotency_keys WHERE ttl_at <= $1 ORDER BY ttl_at LIMIT $2)`
)

// IdempotencyRepository хранит ключи Idempotency-Key оформления в таблице idempotency_keys.
type IdempotencyRepository struct {
	db *sql.DB
}

// NewIdempotencyRepository создаёт репозиторий ключей идемпотентности.
func NewIdempotencyRepository(store *Store) *IdempotencyRepository {
	return &IdempotencyRepository{db: store.DB()}
}

func (r *IdempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	case requestHash == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}

	ctx, cancel := opContext()
	defer cancel()
	claimed, err := execCount(ctx, r.db, idempotencyClaimSQL, key, requestHash, ttlAt, now)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("claim idempotency key %s: %w", key, err)
	}
	if claimed == 0 {
		return r.conflict(key, requestHash)
	}

	return domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// conflict объясняет, почему ключ не удалось занять.
func (r *IdempotencyRepository) conflict(key, requestHash string) (domain.IdempotencyRecord, error) {
	existing, err := r.Get(key)
	switch {
	case err != nil:
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	case existing.RequestHash != requestHash:
		return existing, domain.ErrIdempotencyHashMismatch
	default:
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}
}

func (r *IdempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := opContext()
	defer cancel()

	rec := domain.IdempotencyRecord{Key: key}
	var (
		status string
		code   sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, idempotencySelectSQL, key).Scan(
		&rec.RequestHash, &rec.ResponseBody, &code, &status, &rec.TTLAt, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("select idempotency key %s: %w", key, err)
	}

	rec.Status = domain.IdempotencyStatus(status)
	if !rec.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency key %s has unknown status %q", key, status)
	}
	rec.HTTPStatus = int(code.Int64)
	return rec, nil
}

func (r *IdempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.resolve(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.resolve(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *IdempotencyRepository) resolve(key string, status domain.IdempotencyStatus, body []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := opContext()
	defer cancel()
	n, err := execCount(ctx, r.db, idempotencyResolveSQL, key, string(status), body, httpStatus, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark idempotency key %s %s: %w", key, status, err)
	}
	if n == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

// DeleteExpired удаляет ключи с истёкшим сроком; limit<=0 снимает ограничение на пачку.
func (r *IdempotencyRepository) DeleteExpired(before time.Time, limit int) (int, error) {
	if before.IsZero() {
		before = time.Now()
	}

	ctx, cancel := opContext()
	defer cancel()

	query, args := idempotencyPurgeSQL, []any{before.UTC()}
	if limit > 0 {
		query, args = idempotencyPurgeBatchSQL, append(args, limit)
	}
	n, err := execCount(ctx, r.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge expired idempotency keys: %w", err)
	}
	return int(n), nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
