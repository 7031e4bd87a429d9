package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ShopRepository — in-memory каталог и заказы под одной блокировкой,
// поэтому списание остатка и запись заказа происходят атомарно.
type ShopRepository struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	categories map[string]domain.Category
	orders     map[string]domain.Order
}

// NewShopRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewShopRepository() *ShopRepository {
	return &ShopRepository{
		products:   make(map[string]domain.Product),
		categories: make(map[string]domain.Category),
		orders:     make(map[string]domain.Order),
	}
}

// SeedCategories добавляет или заменяет категории каталога.
func (r *ShopRepository) SeedCategories(categories ...domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range categories {
		r.categories[c.ID] = c
	}
}

// SeedProducts добавляет или заменяет товары каталога.
func (r *ShopRepository) SeedProducts(products ...domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range products {
		r.products[p.ID] = p
	}
}

// ListProducts возвращает товары, отсортированные по названию.
func (r *ShopRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListCategories возвращает категории, отсортированные по названию.
func (r *ShopRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.categories))
	for _, c := range r.categories {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// GetProduct возвращает товар или ErrProductNotFound.
func (r *ShopRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// CreateOrder сохраняет заказ и списывает остатки; при нехватке ничего не меняет.
func (r *ShopRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderAlreadyExists
	}

	// Одна и та же позиция может встретиться дважды, поэтому суммируем по товару.
	requested := make(map[string]decimal.Decimal, len(order.Lines))
	for _, line := range order.Lines {
		if _, ok := r.products[line.ProductID]; !ok {
			return domain.ErrProductNotFound
		}
		requested[line.ProductID] = requested[line.ProductID].Add(line.Quantity)
	}
	for id, qty := range requested {
		product := r.products[id]
		if available, limited := product.AvailableFor(decimal.Zero); limited && qty.GreaterThan(available) {
			return &domain.InsufficientStockError{ProductID: id, Available: available, Unit: product.Unit}
		}
	}
	for id, qty := range requested {
		product := r.products[id]
		if product.StockQuantity.Valid {
			product.StockQuantity.Decimal = product.StockQuantity.Decimal.Sub(qty)
			r.products[id] = product
		}
	}

	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetOrder возвращает заказ или ErrOrderNotFound.
func (r *ShopRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListLineDetails соединяет позиции заказа с названиями товаров.
func (r *ShopRepository) ListLineDetails(ctx context.Context, orderID string) ([]domain.OrderLineDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	details := make([]domain.OrderLineDetail, 0, len(order.Lines))
	for _, line := range order.Lines {
		product := r.products[line.ProductID]
		details = append(details, domain.OrderLineDetail{
			ProductName: product.Name,
			Unit:        product.Unit,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    line.Subtotal,
		})
	}
	return details, nil
}

// Orders возвращает все сохранённые заказы в порядке создания.
func (r *ShopRepository) Orders() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		result = append(result, cloneOrder(order))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func cloneOrder(order domain.Order) domain.Order {
	dst := order
	dst.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return dst
}

var (
	_ domain.OrderRepository   = (*ShopRepository)(nil)
	_ domain.CatalogRepository = (*ShopRepository)(nil)
)
