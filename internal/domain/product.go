package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category группирует товары каталога.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product — товар каталога. Каталог владеет записью; оркестратор её только читает.
type Product struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	// Unit — единица измерения количества, например "kg".
	Unit     string `json:"unit"`
	ImageURL string `json:"image_url,omitempty"`
	InStock  bool   `json:"in_stock"`
	Featured bool   `json:"featured"`
	// StockQuantity — остаток в единицах Unit. Невалидное значение (Valid=false) означает неограниченный остаток.
	StockQuantity decimal.NullDecimal `json:"stock_quantity"`
	CreatedAt     time.Time           `json:"created_at"`
}

// HasLimitedStock сообщает, ограничен ли остаток товара.
func (p Product) HasLimitedStock() bool {
	return p.StockQuantity.Valid
}

// AvailableFor возвращает, сколько ещё можно взять, если в корзине уже лежит reserved.
// Для неограниченного остатка второй результат равен false.
func (p Product) AvailableFor(reserved decimal.Decimal) (decimal.Decimal, bool) {
	if !p.StockQuantity.Valid {
		return decimal.Zero, false
	}
	available := p.StockQuantity.Decimal.Sub(reserved)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return available, true
}
