package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestIdempotencyRepository_PostgresCreateGetAndMarkDone(t *testing.T) {
	store := openTestStore(t)
	repo := NewIdempotencyRepository(store)

	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)
	created, err := repo.CreateProcessing("checkout-done", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	require.NoError(t, repo.MarkDone("checkout-done", []byte(`{"order_id":"o-1"}`), 201))

	got, err := repo.Get("checkout-done")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, 201, got.HTTPStatus)
	require.JSONEq(t, `{"order_id":"o-1"}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl))
	require.True(t, got.Replayable())
}

func TestIdempotencyRepository_PostgresConflicts(t *testing.T) {
	store := openTestStore(t)
	repo := NewIdempotencyRepository(store)
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing("checkout-conflict", "hash-a", ttl)
	require.NoError(t, err)

	_, err = repo.CreateProcessing("checkout-conflict", "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing("checkout-conflict", "hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	_, err = repo.CreateProcessing("", "hash", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.Get("missing")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_PostgresRetryAfterFailureAndExpiry(t *testing.T) {
	store := openTestStore(t)
	repo := NewIdempotencyRepository(store)
	now := time.Now().UTC()

	_, err := repo.CreateProcessing("checkout-retry", "hash-a", now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed("checkout-retry", []byte(`{"error":"x"}`), 503))

	again, err := repo.CreateProcessing("checkout-retry", "hash-a", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, again.Status)

	_, err = repo.CreateProcessing("checkout-expired", "hash-a", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateProcessing("checkout-expired", "hash-other", now.Add(time.Hour))
	require.NoError(t, err, "expired key is reusable with any body")

	_, err = repo.CreateProcessing("checkout-old", "hash", now.Add(-2*time.Hour))
	require.NoError(t, err)
	deleted, err := repo.DeleteExpired(now, 10)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}
