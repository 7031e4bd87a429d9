package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxRepository_PostgresFlow(t *testing.T) {
	store := openTestStore(t)
	repo := NewOutboxRepository(store)

	stored1, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored1.ID)

	fixed := domain.OutboxMessage{
		ID:            "outbox-fixed-id",
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     domain.EventCheckoutCompleted,
		Payload:       []byte(`{"order_id":"order-2"}`),
	}
	stored2, err := repo.Enqueue(fixed)
	require.NoError(t, err)
	require.Equal(t, fixed.ID, stored2.ID)

	// Повторная постановка не дублирует событие.
	_, err = repo.Enqueue(fixed)
	require.NoError(t, err)

	pending, err := repo.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.JSONEq(t, `{"order_id":"order-1"}`, string(pending[0].Payload))

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(stored1.ID))
	require.NoError(t, repo.MarkFailed(stored2.ID))

	after, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, after)

	require.ErrorIs(t, repo.MarkSent("missing"), domain.ErrOutboxPublish)
}
