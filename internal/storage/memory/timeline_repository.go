package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// TimelineRepository хранит историю оформления заказов в памяти.
type TimelineRepository struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() *TimelineRepository {
	return &TimelineRepository{events: make(map[string][]domain.TimelineEvent)}
}

// Append вставляет событие, сохраняя хронологию; события с одинаковым временем идут в порядке добавления.
func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.events[event.OrderID]
	idx := sort.Search(len(events), func(i int) bool {
		return events[i].Occurred.After(event.Occurred)
	})
	events = append(events, domain.TimelineEvent{})
	copy(events[idx+1:], events[idx:])
	events[idx] = event
	r.events[event.OrderID] = events
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
