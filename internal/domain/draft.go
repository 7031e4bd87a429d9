package domain

import (
	"strings"
	"time"
)

// OrderDraft — временный агрегат данных покупателя, самовывоза и снимка корзины.
// Напрямую не сохраняется: на границе хранилища превращается в Order с позициями.
type OrderDraft struct {
	Customer      Customer
	PickupDate    time.Time
	PickupTime    string
	PaymentMethod PaymentMethod
	Notes         string
	Cart          Cart
}

// Validate проверяет черновик по порядку; возвращается первая найденная ошибка.
func (d OrderDraft) Validate(now time.Time) error {
	if d.Cart.IsEmpty() {
		return ErrCartEmpty
	}
	if strings.TrimSpace(d.Customer.FirstName) == "" || strings.TrimSpace(d.Customer.LastName) == "" {
		return ErrCustomerNameRequired
	}
	email := strings.TrimSpace(d.Customer.Email)
	if email == "" || !strings.Contains(email, "@") {
		return ErrEmailInvalid
	}
	if d.PickupDate.IsZero() || strings.TrimSpace(d.PickupTime) == "" {
		return ErrPickupRequired
	}
	minDate := MinimumPickupDate(now)
	y, m, day := d.PickupDate.In(now.Location()).Date()
	if time.Date(y, m, day, 0, 0, 0, 0, now.Location()).Before(minDate) {
		return ErrPickupDateTooEarly
	}
	if !IsPickupSlot(strings.TrimSpace(d.PickupTime)) {
		return ErrPickupSlotInvalid
	}
	if !d.PaymentMethod.Valid() {
		return ErrPaymentMethodInvalid
	}
	return nil
}

// Normalized возвращает копию черновика с обрезанными пробелами в текстовых полях.
func (d OrderDraft) Normalized() OrderDraft {
	d.Customer = Customer{
		FirstName: strings.TrimSpace(d.Customer.FirstName),
		LastName:  strings.TrimSpace(d.Customer.LastName),
		Email:     strings.TrimSpace(d.Customer.Email),
	}
	d.PickupTime = strings.TrimSpace(d.PickupTime)
	d.Notes = strings.TrimSpace(d.Notes)
	return d
}
