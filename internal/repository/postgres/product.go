package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stitchkart/stitchkart/internal/domain"
	"github.com/stitchkart/stitchkart/pkg/database"
	apperrors "github.com/stitchkart/stitchkart/pkg/errors"
)

// ProductRepository implements repository.ProductRepository using PostgreSQL.
// It is read-only: stock mutation happens inside the order-creation
// transaction with a conditional update.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, sku, price, stock, variants, is_active, created_at, updated_at
		FROM products
		WHERE id = $1`

	var (
		p            domain.Product
		variantsJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Price,
		&p.Stock,
		&variantsJSON,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if len(variantsJSON) > 0 && string(variantsJSON) != "null" {
		if err := json.Unmarshal(variantsJSON, &p.Variants); err != nil {
			return nil, fmt.Errorf("unmarshal product variants: %w", err)
		}
	}

	return &p, nil
}

// GetByIDs retrieves multiple products in a single query, keyed by id.
// Products absent from the catalog are simply missing from the result map.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	if len(ids) == 0 {
		return map[string]*domain.Product{}, nil
	}

	query := `
		SELECT id, name, sku, price, stock, variants, is_active, created_at, updated_at
		FROM products
		WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		var (
			p            domain.Product
			variantsJSON []byte
		)
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.SKU,
			&p.Price,
			&p.Stock,
			&variantsJSON,
			&p.IsActive,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}

		if len(variantsJSON) > 0 && string(variantsJSON) != "null" {
			if err := json.Unmarshal(variantsJSON, &p.Variants); err != nil {
				return nil, fmt.Errorf("unmarshal product variants: %w", err)
			}
		}

		products[p.ID] = &p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}
