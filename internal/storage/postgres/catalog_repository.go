package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, COALESCE(category_id, ''), name, description, price, unit, image_url,
	in_stock, featured, stock_quantity, created_at`

// CatalogRepository читает каталог из PostgreSQL.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) *CatalogRepository {
	return &CatalogRepository{db: store.DB()}
}

func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, image_url, created_at
		FROM categories
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, err
}

// UpsertCategory добавляет или обновляет категорию; используется при загрузке каталога.
func (r *CatalogRepository) UpsertCategory(ctx context.Context, c domain.Category) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, image_url)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    image_url = EXCLUDED.image_url
	`, c.ID, c.Name, c.Description, c.ImageURL)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", c.ID, err)
	}
	return nil
}

// UpsertProduct добавляет или обновляет товар вместе с остатком.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var categoryID sql.NullString
	if p.CategoryID != "" {
		categoryID = sql.NullString{String: p.CategoryID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, category_id, name, description, price, unit, image_url, in_stock, featured, stock_quantity
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE
		SET category_id = EXCLUDED.category_id,
		    name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    unit = EXCLUDED.unit,
		    image_url = EXCLUDED.image_url,
		    in_stock = EXCLUDED.in_stock,
		    featured = EXCLUDED.featured,
		    stock_quantity = EXCLUDED.stock_quantity
	`, p.ID, categoryID, p.Name, p.Description, p.Price, p.Unit, p.ImageURL, p.InStock, p.Featured, p.StockQuantity)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.Unit, &p.ImageURL,
		&p.InStock, &p.Featured, &p.StockQuantity, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, err
		}
		return domain.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)
