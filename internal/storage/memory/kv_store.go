package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// KeyValueStore — in-memory хранилище корзин для разработки и тестов.
type KeyValueStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewKeyValueStore создаёт пустое хранилище.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{items: make(map[string]string)}
}

// Get возвращает значение или domain.ErrKeyNotFound.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return value, nil
}

// Set записывает значение по ключу.
func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

var _ domain.KeyValueStore = (*KeyValueStore)(nil)
