package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// DefaultTTL — сколько хранится ответ на оформление.
const DefaultTTL = 24 * time.Hour

// Решения guard для метрик.
const (
	DecisionProceed  = "proceed"
	DecisionReplay   = "replay"
	DecisionConflict = "conflict"
	DecisionMismatch = "mismatch"
)

// Decision — результат резервирования ключа.
type Decision struct {
	// Replay означает, что оформление уже выполнено и нужно вернуть сохранённый ответ.
	Replay bool
	Status int
	Body   []byte
}

// Guard не даёт повторной отправке формы создать второй заказ.
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *log.Entry
	metrics *metrics.IdempotencyMetrics
}

// NewGuard создаёт guard поверх репозитория ключей.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, m *metrics.IdempotencyMetrics, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	if m == nil {
		m = metrics.NewIdempotencyMetrics(nil)
	}
	return &Guard{
		repo:    repo,
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
		metrics: m,
	}
}

// HashRequest возвращает отпечаток тела запроса.
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Begin резервирует ключ под тело запроса.
// Возвращает ErrIdempotencyKeyAlreadyExists, пока первый запрос ещё выполняется,
// и ErrIdempotencyHashMismatch, если ключ использован с другим телом.
func (g *Guard) Begin(key string, body []byte) (Decision, error) {
	_, err := g.repo.CreateProcessing(key, HashRequest(body), g.now().Add(g.ttl))
	switch {
	case err == nil:
		g.metrics.RecordDecision(DecisionProceed)
		return Decision{}, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordDecision(DecisionMismatch)
		return Decision{}, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		record, getErr := g.repo.Get(key)
		if getErr != nil {
			return Decision{}, fmt.Errorf("load idempotency record: %w", getErr)
		}
		if record.Replayable() {
			g.metrics.RecordDecision(DecisionReplay)
			return Decision{Replay: true, Status: record.HTTPStatus, Body: record.ResponseBody}, nil
		}
		g.metrics.RecordDecision(DecisionConflict)
		return Decision{}, err
	default:
		return Decision{}, err
	}
}

// Complete сохраняет ответ. Только успешный ответ закрепляется за ключом;
// после ошибки ключ можно повторить с тем же телом запроса, а исправленная
// форма отправляется с новым ключом.
func (g *Guard) Complete(key string, status int, body []byte) {
	var err error
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		err = g.repo.MarkDone(key, body, status)
	} else {
		err = g.repo.MarkFailed(key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}
