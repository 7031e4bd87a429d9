package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openTestStore(t)
	repo := NewTimelineRepository(store)

	base := time.Date(2026, 3, 10, 15, 45, 0, 0, time.UTC)
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: domain.EventCheckoutCompleted, Occurred: base.Add(time.Second)}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: domain.EventOrderCreated, Occurred: base}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "order-1", Type: domain.EventPaymentFallback, Reason: "session", Occurred: base}))
	require.NoError(t, repo.Append(domain.TimelineEvent{OrderID: "order-2", Type: domain.EventOrderCreated}))

	events, err := repo.List("order-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, domain.EventOrderCreated, events[0].Type)
	require.Equal(t, domain.EventPaymentFallback, events[1].Type)
	require.Equal(t, "session", events[1].Reason)
	require.Equal(t, domain.EventCheckoutCompleted, events[2].Type)

	require.Error(t, repo.Append(domain.TimelineEvent{Type: domain.EventOrderCreated}))
}
