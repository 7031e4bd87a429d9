package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockService — конфигурируемая заглушка PaymentService для тестов и локального запуска.
type MockService struct {
	mu sync.Mutex

	SessionErr  error
	RedirectErr error
	// RedirectBase — адрес, к которому добавляется идентификатор сессии.
	RedirectBase string

	Requests      []domain.PaymentSessionRequest
	SessionCalls  int
	RedirectCalls int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{RedirectBase: "https://pay.example.test/checkout/"}
}

// CreatePaymentSession запоминает запрос и возвращает сессию или настроенную ошибку.
func (m *MockService) CreatePaymentSession(_ context.Context, req domain.PaymentSessionRequest) (domain.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SessionCalls++
	m.Requests = append(m.Requests, req)
	if m.SessionErr != nil {
		return domain.PaymentSession{}, m.SessionErr
	}
	id := "pi_mock_" + uuid.NewString()
	return domain.PaymentSession{ID: id, ClientSecret: id + "_secret"}, nil
}

// RedirectToPayment возвращает адрес оплаты или настроенную ошибку.
func (m *MockService) RedirectToPayment(_ context.Context, session domain.PaymentSession) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RedirectCalls++
	if m.RedirectErr != nil {
		return "", m.RedirectErr
	}
	return m.RedirectBase + session.ID, nil
}

var _ domain.PaymentService = (*MockService)(nil)
