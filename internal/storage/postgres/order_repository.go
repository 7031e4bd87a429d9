package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	store *Store
	db    *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store, db: store.DB()}
}

// CreateOrder записывает заказ, позиции и списание остатков одной транзакцией.
func (r *orderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.store.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (
				id, first_name, last_name, email, total_amount, status,
				pickup_date, pickup_time, payment_method, payment_status, notes, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`,
			order.ID, order.Customer.FirstName, order.Customer.LastName, order.Customer.Email,
			order.TotalAmount, string(order.Status), order.PickupDate, order.PickupTime,
			string(order.PaymentMethod), string(order.PaymentStatus), order.Notes, order.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderAlreadyExists
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if err := decrementStock(ctx, tx, order.Lines); err != nil {
			return err
		}

		for i, line := range order.Lines {
			if line.ID == "" {
				line.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (
					id, order_id, product_id, position, quantity, unit_price, subtotal, created_at
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			`,
				line.ID, order.ID, line.ProductID, i, line.Quantity, line.UnitPrice, line.Subtotal, order.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
}

// decrementStock списывает остатки условным UPDATE. Товары обходятся по ID,
// чтобы параллельные транзакции брали блокировки в одном порядке.
func decrementStock(ctx context.Context, tx *sql.Tx, lines []domain.OrderLine) error {
	requested := make(map[string]decimal.Decimal, len(lines))
	for _, line := range lines {
		requested[line.ProductID] = requested[line.ProductID].Add(line.Quantity)
	}
	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		qty := requested[id]
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2
			WHERE id = $1
			  AND (stock_quantity IS NULL OR stock_quantity >= $2)
		`, id, qty)
		if err != nil {
			return fmt.Errorf("decrement stock for %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 1 {
			continue
		}

		var (
			stock decimal.NullDecimal
			unit  string
		)
		err = tx.QueryRowContext(ctx, `SELECT stock_quantity, unit FROM products WHERE id = $1`, id).Scan(&stock, &unit)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("load stock for %s: %w", id, err)
		}
		return &domain.InsufficientStockError{ProductID: id, Available: stock.Decimal, Unit: unit}
	}
	return nil
}

func (r *orderRepository) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		order                                domain.Order
		status, paymentMethod, paymentStatus string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, total_amount, status,
		       pickup_date, pickup_time, payment_method, payment_status, notes, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.Customer.FirstName, &order.Customer.LastName, &order.Customer.Email,
		&order.TotalAmount, &status, &order.PickupDate, &order.PickupTime,
		&paymentMethod, &paymentStatus, &order.Notes, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.PaymentMethod = domain.PaymentMethod(paymentMethod)
	order.PaymentStatus = domain.PaymentStatus(paymentStatus)

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *orderRepository) ListLineDetails(ctx context.Context, orderID string) ([]domain.OrderLineDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	exists, err := r.orderExists(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrOrderNotFound
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name, p.unit, i.quantity, i.unit_price, i.subtotal
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list line details: %w", err)
	}
	defer rows.Close()

	details := make([]domain.OrderLineDetail, 0)
	for rows.Next() {
		var d domain.OrderLineDetail
		if err := rows.Scan(&d.ProductName, &d.Unit, &d.Quantity, &d.UnitPrice, &d.Subtotal); err != nil {
			return nil, fmt.Errorf("scan line detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line details: %w", err)
	}
	return details, nil
}

func (r *orderRepository) loadLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
