package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// KeyPrefix — префикс ключей корзин в key-value хранилище.
const KeyPrefix = "cart:"

// Key возвращает ключ хранилища для идентификатора корзины.
func Key(cartID string) string {
	return KeyPrefix + cartID
}

// Store хранит позиции одной корзины и проверяет инварианты остатка при каждом изменении.
// Каждое изменение синхронно сериализует корзину целиком в хранилище; при ошибке записи
// изменение откатывается.
type Store struct {
	mu     sync.RWMutex
	key    string
	kv     domain.KeyValueStore
	lines  []domain.CartLine
	logger *log.Entry
}

// Open восстанавливает корзину по ключу. Отсутствующий ключ даёт пустую корзину.
func Open(ctx context.Context, kv domain.KeyValueStore, key string, logger *log.Entry) (*Store, error) {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	s := &Store{key: key, kv: kv, logger: logger.WithField("cart_key", key)}
	if kv == nil {
		return s, nil
	}

	raw, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}

	lines, err := Decode(raw)
	if err != nil {
		// Повреждённая запись не должна блокировать покупателя: начинаем с пустой корзины.
		s.logger.WithError(err).Warn("discarding unreadable cart")
		return s, nil
	}
	s.lines = lines
	return s, nil
}

// AddToCart добавляет товар или увеличивает количество существующей позиции.
// При нехватке остатка возвращает *domain.InsufficientStockError и ничего не меняет.
func (s *Store) AddToCart(ctx context.Context, product domain.Product, quantity decimal.Decimal) error {
	if !domain.ValidQuantity(quantity) {
		return domain.ErrQuantityInvalid
	}
	if !product.InStock {
		return domain.ErrProductUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(product.ID)
	reserved := decimal.Zero
	if idx >= 0 {
		reserved = s.lines[idx].Quantity
	}
	if available, limited := product.AvailableFor(reserved); limited && quantity.GreaterThan(available) {
		return &domain.InsufficientStockError{ProductID: product.ID, Available: available, Unit: product.Unit}
	}

	next := s.cloneLines()
	if idx >= 0 {
		next[idx].Quantity = next[idx].Quantity.Add(quantity)
		next[idx].Product = product
	} else {
		next = append(next, domain.CartLine{Product: product, Quantity: quantity})
	}
	return s.commit(ctx, next)
}

// UpdateQuantity задаёт новое количество позиции. quantity <= 0 эквивалентно RemoveFromCart.
// Остаток проверяется по снимку товара в самой позиции.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return s.RemoveFromCart(ctx, productID)
	}
	if !domain.ValidQuantity(quantity) {
		return domain.ErrQuantityInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return nil
	}
	product := s.lines[idx].Product
	if available, limited := product.AvailableFor(decimal.Zero); limited && quantity.GreaterThan(available) {
		return &domain.InsufficientStockError{ProductID: productID, Available: available, Unit: product.Unit}
	}

	next := s.cloneLines()
	next[idx].Quantity = quantity
	return s.commit(ctx, next)
}

// RemoveFromCart удаляет позицию. Удаление отсутствующего товара — не ошибка.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(productID)
	if idx < 0 {
		return nil
	}
	next := make([]domain.CartLine, 0, len(s.lines)-1)
	next = append(next, s.lines[:idx]...)
	next = append(next, s.lines[idx+1:]...)
	return s.commit(ctx, next)
}

// ClearCart безусловно очищает корзину.
func (s *Store) ClearCart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, nil)
}

// Snapshot возвращает копию текущего состояния.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Cart{Lines: s.cloneLines()}
}

// TotalItems — сумма количеств; всегда считается по текущему состоянию.
func (s *Store) TotalItems() decimal.Decimal {
	return s.Snapshot().TotalItems()
}

// TotalAmount — сумма quantity × price; всегда считается по текущему состоянию.
func (s *Store) TotalAmount() decimal.Decimal {
	return s.Snapshot().TotalAmount()
}

// Key возвращает ключ корзины в хранилище.
func (s *Store) Key() string {
	return s.key
}

func (s *Store) commit(ctx context.Context, next []domain.CartLine) error {
	if s.kv != nil {
		raw, err := Encode(next)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrCartPersist, err)
		}
		if err := s.kv.Set(ctx, s.key, raw); err != nil {
			s.logger.WithError(err).Warn("cart persist failed, mutation rolled back")
			return fmt.Errorf("%w: %v", domain.ErrCartPersist, err)
		}
	}
	s.lines = next
	return nil
}

func (s *Store) indexOf(productID string) int {
	for i, line := range s.lines {
		if line.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) cloneLines() []domain.CartLine {
	if len(s.lines) == 0 {
		return nil
	}
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Encode сериализует позиции корзины в JSON.
func Encode(lines []domain.CartLine) (string, error) {
	if lines == nil {
		lines = []domain.CartLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(raw), nil
}

// Decode восстанавливает позиции из JSON, отбрасывая строки с количеством <= 0.
func Decode(raw string) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	out := lines[:0]
	for _, line := range lines {
		if !line.Quantity.IsPositive() || line.Product.ID == "" {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
