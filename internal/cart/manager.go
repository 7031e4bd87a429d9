package cart

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Manager открывает корзины по идентификатору и сериализует работу с одной корзиной,
// чтобы параллельные запросы не перезаписывали друг друга.
type Manager struct {
	kv     domain.KeyValueStore
	logger *log.Entry

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager создаёт менеджер корзин поверх key-value хранилища.
func NewManager(kv domain.KeyValueStore, logger *log.Entry) *Manager {
	if logger == nil {
		logger = log.New().WithField("component", "cart-manager")
	}
	return &Manager{
		kv:     kv,
		logger: logger,
		locks:  make(map[string]*keyLock),
	}
}

// With загружает корзину cartID из хранилища и вызывает fn под эксклюзивной блокировкой корзины.
func (m *Manager) With(ctx context.Context, cartID string, fn func(*Store) error) error {
	key := Key(cartID)
	unlock := m.lock(key)
	defer unlock()

	store, err := Open(ctx, m.kv, key, m.logger.WithField("cart_id", cartID))
	if err != nil {
		return err
	}
	return fn(store)
}

// Load возвращает снимок корзины без блокировки изменений.
func (m *Manager) Load(ctx context.Context, cartID string) (domain.Cart, error) {
	store, err := Open(ctx, m.kv, Key(cartID), m.logger.WithField("cart_id", cartID))
	if err != nil {
		return domain.Cart{}, err
	}
	return store.Snapshot(), nil
}

func (m *Manager) lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
