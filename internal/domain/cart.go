package domain

import "github.com/shopspring/decimal"

// QuantityStep — минимальный шаг количества в корзине.
var QuantityStep = decimal.RequireFromString("0.5")

// CartLine — одна позиция корзины: товар и запрошенное количество в его единицах.
type CartLine struct {
	Product  Product         `json:"product"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Subtotal возвращает quantity × price по снимку товара.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.Product.Price)
}

// Cart — упорядоченный набор позиций, ключ — идентификатор товара.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// TotalItems — сумма количеств по всем позициям.
func (c Cart) TotalItems() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Quantity)
	}
	return total
}

// TotalAmount — сумма quantity × price по всем позициям.
func (c Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Find возвращает позицию по идентификатору товара.
func (c Cart) Find(productID string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.Product.ID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// ValidQuantity проверяет, что количество положительно и кратно QuantityStep.
func ValidQuantity(q decimal.Decimal) bool {
	if !q.IsPositive() {
		return false
	}
	return q.Mod(QuantityStep).IsZero()
}
