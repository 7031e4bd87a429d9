package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seededRepo() *memory.ShopRepository {
	repo := memory.NewShopRepository()
	repo.SeedCategories(
		domain.Category{ID: "boeuf", Name: "Boeuf"},
		domain.Category{ID: "agneau", Name: "Agneau"},
	)
	repo.SeedProducts(
		domain.Product{ID: "entrecote", CategoryID: "boeuf", Name: "Entrecôte", Price: dec("32.90"), Unit: "kg", InStock: true, StockQuantity: decimal.NewNullDecimal(dec("2"))},
		domain.Product{ID: "gigot", CategoryID: "agneau", Name: "Gigot", Price: dec("24.50"), Unit: "kg", InStock: true},
	)
	return repo
}

func newOrder(id string, lines ...domain.OrderLine) domain.Order {
	now := time.Now().UTC()
	total := decimal.Zero
	for i := range lines {
		lines[i].OrderID = id
		lines[i].Subtotal = lines[i].UnitPrice.Mul(lines[i].Quantity)
		lines[i].CreatedAt = now
		total = total.Add(lines[i].Subtotal)
	}
	return domain.Order{
		ID:            id,
		Customer:      domain.Customer{FirstName: "Jean", LastName: "Dupont", Email: "jean@example.com"},
		TotalAmount:   total,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodInStore,
		PaymentStatus: domain.PaymentStatusPending,
		PickupTime:    "10:00",
		Lines:         lines,
		CreatedAt:     now,
	}
}

func TestShopRepository_Catalog(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 || products[0].ID != "entrecote" {
		t.Fatalf("unexpected products %+v", products)
	}

	categories, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 2 || categories[0].ID != "agneau" {
		t.Fatalf("unexpected categories %+v", categories)
	}

	if _, err := repo.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestShopRepository_CreateOrderDecrementsStock(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	order := newOrder("order-1",
		domain.OrderLine{ID: "l1", ProductID: "entrecote", Quantity: dec("1.5"), UnitPrice: dec("32.90")},
		domain.OrderLine{ID: "l2", ProductID: "gigot", Quantity: dec("3"), UnitPrice: dec("24.50")},
	)
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	product, err := repo.GetProduct(ctx, "entrecote")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !product.StockQuantity.Decimal.Equal(dec("0.5")) {
		t.Fatalf("expected stock 0.5, got %s", product.StockQuantity.Decimal)
	}

	unlimited, _ := repo.GetProduct(ctx, "gigot")
	if unlimited.StockQuantity.Valid {
		t.Fatal("unlimited stock must stay unlimited")
	}

	if err := repo.CreateOrder(ctx, order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
}

func TestShopRepository_CreateOrderInsufficientStockIsAtomic(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	order := newOrder("order-2",
		domain.OrderLine{ID: "l1", ProductID: "gigot", Quantity: dec("1"), UnitPrice: dec("24.50")},
		domain.OrderLine{ID: "l2", ProductID: "entrecote", Quantity: dec("2.5"), UnitPrice: dec("32.90")},
	)
	err := repo.CreateOrder(ctx, order)

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != "entrecote" || !stockErr.Available.Equal(dec("2")) {
		t.Fatalf("unexpected stock error %+v", stockErr)
	}

	if _, err := repo.GetOrder(ctx, "order-2"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order must not be stored, got %v", err)
	}
	product, _ := repo.GetProduct(ctx, "entrecote")
	if !product.StockQuantity.Decimal.Equal(dec("2")) {
		t.Fatalf("stock must be untouched, got %s", product.StockQuantity.Decimal)
	}
}

func TestShopRepository_ListLineDetails(t *testing.T) {
	repo := seededRepo()
	ctx := context.Background()

	order := newOrder("order-3",
		domain.OrderLine{ID: "l1", ProductID: "gigot", Quantity: dec("0.5"), UnitPrice: dec("24.50")},
	)
	if err := repo.CreateOrder(ctx, order); err != nil {
		t.Fatalf("create order: %v", err)
	}

	details, err := repo.ListLineDetails(ctx, "order-3")
	if err != nil {
		t.Fatalf("list details: %v", err)
	}
	if len(details) != 1 || details[0].ProductName != "Gigot" || details[0].Unit != "kg" {
		t.Fatalf("unexpected details %+v", details)
	}
	if !details[0].Subtotal.Equal(dec("12.25")) {
		t.Fatalf("unexpected subtotal %s", details[0].Subtotal)
	}

	if _, err := repo.ListLineDetails(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if got := repo.Orders(); len(got) != 1 {
		t.Fatalf("expected 1 order, got %d", len(got))
	}
}
