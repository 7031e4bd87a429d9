package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа на самовывоз.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ждёт обработки персоналом.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — персонал подтвердил заказ.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusReady — заказ собран и ждёт клиента.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusCompleted — клиент забрал заказ.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — оплата ещё не подтверждена (в том числе оплата в магазине).
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid — оплата получена.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed — провайдер отклонил оплату.
	PaymentStatusFailed PaymentStatus = "failed"
)

// PaymentMethod определяет, кто в итоге отмечает заказ оплаченным.
type PaymentMethod string

const (
	PaymentMethodInStore PaymentMethod = "in_store"
	PaymentMethodOnline  PaymentMethod = "online"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodInStore || m == PaymentMethodOnline
}

// Customer — данные покупателя; аккаунт не требуется.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// FullName возвращает "Имя Фамилия" без лишних пробелов.
func (c Customer) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// OrderLine — позиция заказа. UnitPrice и Subtotal фиксируются в момент оформления
// и больше не пересчитываются.
type OrderLine struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderLineDetail — позиция заказа вместе с названием и единицей товара.
type OrderLineDetail struct {
	ProductName string          `json:"product_name"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Order агрегирует заказ и его позиции.
type Order struct {
	ID            string          `json:"id"`
	Customer      Customer        `json:"customer"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        OrderStatus     `json:"status"`
	PickupDate    time.Time       `json:"pickup_date"`
	PickupTime    string          `json:"pickup_time"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Notes         string          `json:"notes,omitempty"`
	Lines         []OrderLine     `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ShortRef возвращает короткий номер заказа для SMS и писем персоналу.
func (o Order) ShortRef() string {
	ref := o.ID
	if len(ref) > 8 {
		ref = ref[:8]
	}
	return strings.ToUpper(ref)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Lines) == 0 {
		errs = append(errs, ErrCartEmpty)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций.
	calc := decimal.Zero
	for _, line := range o.Lines {
		if !line.Quantity.IsPositive() {
			errs = append(errs, ErrQuantityInvalid)
		}
		if line.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		if !line.Subtotal.Equal(line.Quantity.Mul(line.UnitPrice)) {
			errs = append(errs, ErrAmountMismatch)
		}
		calc = calc.Add(line.Subtotal)
	}
	if !calc.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
