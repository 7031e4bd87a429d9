package cart_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func limitedProduct(id, stock string) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          "Produit " + id,
		Price:         dec("12.40"),
		Unit:          "kg",
		InStock:       true,
		StockQuantity: decimal.NewNullDecimal(dec(stock)),
	}
}

func unlimitedProduct(id string) domain.Product {
	return domain.Product{ID: id, Name: "Produit " + id, Price: dec("3"), Unit: "pièce", InStock: true}
}

// failingKV отдаёт ошибку на запись, когда failSet включён.
type failingKV struct {
	*memory.KeyValueStore
	failSet bool
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("kv unavailable")
	}
	return f.KeyValueStore.Set(ctx, key, value)
}

func openStore(t *testing.T, kv domain.KeyValueStore) *cart.Store {
	t.Helper()
	store, err := cart.Open(context.Background(), kv, cart.Key("test"), nil)
	require.NoError(t, err)
	return store
}

func TestAddToCart_StockExceededKeepsCart(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())
	p := limitedProduct("entrecote", "2")

	require.NoError(t, store.AddToCart(ctx, p, dec("1.5")))

	err := store.AddToCart(ctx, p, dec("1"))
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.True(t, stockErr.Available.Equal(dec("0.5")), "available %s", stockErr.Available)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	snapshot := store.Snapshot()
	require.Len(t, snapshot.Lines, 1)
	require.True(t, snapshot.Lines[0].Quantity.Equal(dec("1.5")))
}

func TestAddToCart_MergesLines(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())
	p := unlimitedProduct("merguez")

	require.NoError(t, store.AddToCart(ctx, p, dec("1")))
	require.NoError(t, store.AddToCart(ctx, p, dec("2.5")))

	line, ok := store.Snapshot().Find("merguez")
	require.True(t, ok)
	require.True(t, line.Quantity.Equal(dec("3.5")))
	require.True(t, store.TotalAmount().Equal(dec("10.5")))
}

func TestAddToCart_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())

	require.ErrorIs(t, store.AddToCart(ctx, unlimitedProduct("a"), dec("0.3")), domain.ErrQuantityInvalid)
	require.ErrorIs(t, store.AddToCart(ctx, unlimitedProduct("a"), decimal.Zero), domain.ErrQuantityInvalid)

	outOfStock := unlimitedProduct("b")
	outOfStock.InStock = false
	require.ErrorIs(t, store.AddToCart(ctx, outOfStock, dec("1")), domain.ErrProductUnavailable)
	require.True(t, store.Snapshot().IsEmpty())
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())
	p := limitedProduct("bavette", "3")
	require.NoError(t, store.AddToCart(ctx, p, dec("1")))

	require.NoError(t, store.UpdateQuantity(ctx, "bavette", dec("3")))
	line, _ := store.Snapshot().Find("bavette")
	require.True(t, line.Quantity.Equal(dec("3")))

	err := store.UpdateQuantity(ctx, "bavette", dec("3.5"))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	line, _ = store.Snapshot().Find("bavette")
	require.True(t, line.Quantity.Equal(dec("3")), "failed update must not mutate")

	require.NoError(t, store.UpdateQuantity(ctx, "absent", dec("1")))

	require.NoError(t, store.UpdateQuantity(ctx, "bavette", decimal.Zero))
	require.True(t, store.Snapshot().IsEmpty())
}

func TestRemoveFromCart_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())
	require.NoError(t, store.AddToCart(ctx, unlimitedProduct("a"), dec("1")))
	require.NoError(t, store.AddToCart(ctx, unlimitedProduct("b"), dec("2")))

	require.NoError(t, store.RemoveFromCart(ctx, "a"))
	once := store.Snapshot()
	require.NoError(t, store.RemoveFromCart(ctx, "a"))
	require.Equal(t, once, store.Snapshot())
}

func TestClearCart(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, memory.NewKeyValueStore())
	require.NoError(t, store.AddToCart(ctx, unlimitedProduct("a"), dec("1")))

	require.NoError(t, store.ClearCart(ctx))
	require.True(t, store.Snapshot().IsEmpty())
	require.True(t, store.TotalItems().IsZero())
}

func TestStore_RoundTripThroughKV(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKeyValueStore()
	store := openStore(t, kv)
	require.NoError(t, store.AddToCart(ctx, limitedProduct("entrecote", "5"), dec("1.5")))
	require.NoError(t, store.AddToCart(ctx, unlimitedProduct("merguez"), dec("4")))

	reopened := openStore(t, kv)
	original := store.Snapshot()
	restored := reopened.Snapshot()

	require.Len(t, restored.Lines, len(original.Lines))
	for i := range original.Lines {
		require.Equal(t, original.Lines[i].Product.ID, restored.Lines[i].Product.ID)
		require.True(t, original.Lines[i].Quantity.Equal(restored.Lines[i].Quantity))
		require.True(t, original.Lines[i].Product.Price.Equal(restored.Lines[i].Product.Price))
		require.Equal(t, original.Lines[i].Product.StockQuantity.Valid, restored.Lines[i].Product.StockQuantity.Valid)
	}
	require.True(t, original.TotalAmount().Equal(restored.TotalAmount()))
}

func TestStore_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KeyValueStore: memory.NewKeyValueStore()}
	store := openStore(t, kv)
	require.NoError(t, store.AddToCart(ctx, unlimitedProduct("a"), dec("1")))

	kv.failSet = true
	err := store.AddToCart(ctx, unlimitedProduct("b"), dec("1"))
	require.ErrorIs(t, err, domain.ErrCartPersist)
	require.Len(t, store.Snapshot().Lines, 1)

	require.ErrorIs(t, store.ClearCart(ctx), domain.ErrCartPersist)
	require.Len(t, store.Snapshot().Lines, 1)
}

func TestOpen_DiscardsCorruptedPayload(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKeyValueStore()
	require.NoError(t, kv.Set(ctx, cart.Key("test"), "{not json"))

	store := openStore(t, kv)
	require.True(t, store.Snapshot().IsEmpty())
}

func TestDecode_DropsNonPositiveLines(t *testing.T) {
	lines, err := cart.Decode(`[{"product":{"id":"a","price":"1"},"quantity":"0"},{"product":{"id":"b","price":"2"},"quantity":"1.5"}]`)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "b", lines[0].Product.ID)
}

// Случайные последовательности операций не должны нарушать инварианты корзины.
func TestStore_RandomOperationsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	products := []domain.Product{
		limitedProduct("p1", "2"),
		limitedProduct("p2", "5.5"),
		unlimitedProduct("p3"),
		limitedProduct("p4", "0"),
	}
	quantities := []string{"0", "0.5", "1", "1.5", "2", "3", "-1"}

	for run := 0; run < 50; run++ {
		store := openStore(t, memory.NewKeyValueStore())
		for step := 0; step < 40; step++ {
			p := products[rng.Intn(len(products))]
			q := dec(quantities[rng.Intn(len(quantities))])

			var err error
			switch rng.Intn(3) {
			case 0:
				err = store.AddToCart(ctx, p, q)
			case 1:
				err = store.UpdateQuantity(ctx, p.ID, q)
			default:
				err = store.RemoveFromCart(ctx, p.ID)
			}
			if err != nil && !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrQuantityInvalid) {
				t.Fatalf("run %d step %d: unexpected error %v", run, step, err)
			}

			snapshot := store.Snapshot()
			sum := decimal.Zero
			for _, line := range snapshot.Lines {
				if !line.Quantity.IsPositive() {
					t.Fatalf("run %d step %d: non-positive quantity %s", run, step, line.Quantity)
				}
				if line.Product.StockQuantity.Valid && line.Quantity.GreaterThan(line.Product.StockQuantity.Decimal) {
					t.Fatalf("run %d step %d: quantity %s exceeds stock %s", run, step, line.Quantity, line.Product.StockQuantity.Decimal)
				}
				sum = sum.Add(line.Quantity.Mul(line.Product.Price))
			}
			if !store.TotalAmount().Equal(sum) {
				t.Fatalf("run %d step %d: total %s != %s", run, step, store.TotalAmount(), sum)
			}
		}
	}
}
