package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности оформления заказа.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — оформление принято и ещё выполняется.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — ответ сохранён и возвращается повторно.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — оформление не удалось, ключ можно использовать снова.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// IdempotencyRecord хранит ответ на запрос оформления с заголовком Idempotency-Key.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Replayable сообщает, можно ли вернуть сохранённый ответ вместо повторного оформления.
func (r IdempotencyRecord) Replayable() bool {
	return r.Status == IdempotencyStatusDone && r.HTTPStatus > 0
}

// Expired сообщает, истёк ли срок хранения записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.IsZero() && !r.TTLAt.After(now)
}
