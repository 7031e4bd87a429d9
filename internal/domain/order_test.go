package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:            "3f2a9c1e-0000-4000-8000-000000000001",
		Customer:      domain.Customer{FirstName: "Jean", LastName: "Dupont", Email: "jean@example.com"},
		TotalAmount:   dec("37.50"),
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodInStore,
		PaymentStatus: domain.PaymentStatusPending,
		PickupTime:    "10:00",
		Lines: []domain.OrderLine{
			{
				ID:        "line-1",
				ProductID: "entrecote",
				Quantity:  dec("1.5"),
				UnitPrice: dec("25"),
				Subtotal:  dec("37.5"),
				CreatedAt: now,
			},
		},
		CreatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "negative amount",
			mut: func(o *domain.Order) {
				o.TotalAmount = dec("-1")
			},
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].Quantity = decimal.Zero
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].UnitPrice = dec("-5")
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.TotalAmount = dec("99")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			// Изменяем состояние согласно сценарию.
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderShortRef(t *testing.T) {
	order := makeOrder()
	if got := order.ShortRef(); got != "3F2A9C1E" {
		t.Fatalf("unexpected short ref %q", got)
	}
	order.ID = "abc"
	if got := order.ShortRef(); got != "ABC" {
		t.Fatalf("unexpected short ref for short id %q", got)
	}
}

func TestCustomerFullName(t *testing.T) {
	c := domain.Customer{FirstName: "  Marie ", LastName: " Curie"}
	if got := c.FullName(); got != "Marie Curie" {
		t.Fatalf("unexpected full name %q", got)
	}
}

func TestCartTotals(t *testing.T) {
	cart := domain.Cart{Lines: []domain.CartLine{
		{Product: domain.Product{ID: "a", Price: dec("12.40")}, Quantity: dec("1.5")},
		{Product: domain.Product{ID: "b", Price: dec("3")}, Quantity: dec("2")},
	}}

	if !cart.TotalItems().Equal(dec("3.5")) {
		t.Fatalf("unexpected total items %s", cart.TotalItems())
	}
	if !cart.TotalAmount().Equal(dec("24.6")) {
		t.Fatalf("unexpected total amount %s", cart.TotalAmount())
	}
	if _, ok := cart.Find("b"); !ok {
		t.Fatal("expected to find product b")
	}
	if _, ok := cart.Find("missing"); ok {
		t.Fatal("did not expect to find missing product")
	}
}

func TestValidQuantity(t *testing.T) {
	tests := []struct {
		q    string
		want bool
	}{
		{"0.5", true},
		{"1", true},
		{"2.5", true},
		{"0", false},
		{"-0.5", false},
		{"0.25", false},
		{"1.3", false},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			if got := domain.ValidQuantity(dec(tt.q)); got != tt.want {
				t.Errorf("ValidQuantity(%s) = %v, want %v", tt.q, got, tt.want)
			}
		})
	}
}

func TestProductAvailableFor(t *testing.T) {
	limited := domain.Product{StockQuantity: decimal.NewNullDecimal(dec("2"))}
	available, ok := limited.AvailableFor(dec("1.5"))
	if !ok || !available.Equal(dec("0.5")) {
		t.Fatalf("expected 0.5 available, got %s (limited=%v)", available, ok)
	}

	over, _ := limited.AvailableFor(dec("3"))
	if !over.IsZero() {
		t.Fatalf("available must not be negative, got %s", over)
	}

	unlimited := domain.Product{}
	if _, ok := unlimited.AvailableFor(dec("100")); ok {
		t.Fatal("expected unlimited stock")
	}
}
