package domain

import "time"

// OrderDetails — полная информация о созданном заказе для уведомлений и подтверждения.
type OrderDetails struct {
	Order Order
	Items []OrderLineDetail
}

// Checkout-события, которые попадают в outbox и timeline.
const (
	EventOrderCreated          = "OrderCreated"
	EventPaymentSessionCreated = "PaymentSessionCreated"
	EventPaymentFallback       = "PaymentFallback"
	EventCheckoutCompleted     = "CheckoutCompleted"
)

// TimelineEvent — запись в истории оформления заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
