package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	timelineInsertSQL = `INSERT INTO order_timeline (order_id, type, reason, occurred) VALUES ($1, $2, $3, $4)`
	timelineSelectSQL = `SELECT type, reason, occurred FROM order_timeline WHERE order_id = $1 ORDER BY occurred, id`
)

// TimelineRepository пишет историю оформления в таблицу order_timeline.
type TimelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт репозиторий истории заказа.
func NewTimelineRepository(store *Store) *TimelineRepository {
	return &TimelineRepository{db: store.DB()}
}

func (r *TimelineRepository) Append(event domain.TimelineEvent) error {
	if event.OrderID == "" {
		return fmt.Errorf("timeline event without order: %w", domain.ErrOrderNotFound)
	}
	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now()
	}

	ctx, cancel := opContext()
	defer cancel()
	if _, err := r.db.ExecContext(ctx, timelineInsertSQL, event.OrderID, event.Type, event.Reason, occurred.UTC()); err != nil {
		return fmt.Errorf("insert timeline event %s for %s: %w", event.Type, event.OrderID, err)
	}
	return nil
}

// List возвращает события заказа в порядке записи. Для неизвестного заказа список пуст.
func (r *TimelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	ctx, cancel := opContext()
	defer cancel()

	rows, err := r.db.QueryContext(ctx, timelineSelectSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("select timeline for %s: %w", orderID, err)
	}
	defer rows.Close()

	events := []domain.TimelineEvent{}
	for rows.Next() {
		ev := domain.TimelineEvent{OrderID: orderID}
		if err := rows.Scan(&ev.Type, &ev.Reason, &ev.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		ev.Occurred = ev.Occurred.UTC()
		events = append(events, ev)
	}
	return events, rows.Err()
}

var _ domain.TimelineRepository = (*TimelineRepository)(nil)
