package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// ProductRepository provides data access for the products table. Every
// method is scoped to a business; a product of another business is
// reported as not found.
type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, business_id, name, description, category, price, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*types.Product, error) {
	var p types.Product
	err := row.Scan(
		&p.ID,
		&p.BusinessID,
		&p.Name,
		&p.Description,
		&p.Category,
		&p.Price,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func notFoundProduct() *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundProduct, "Product not found", nil)
}

func (r *ProductRepository) Create(ctx context.Context, p *types.Product) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO products (id, business_id, name, description, category, price, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		p.ID,
		p.BusinessID,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.IsActive,
		p.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create product", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, businessID, id string) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND business_id = $2`,
		id,
		businessID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundProduct()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve product", err)
	}
	return p, nil
}

// FindByName matches a product name case-insensitively. Used by the
// spreadsheet import to resolve rows.
func (r *ProductRepository) FindByName(ctx context.Context, businessID, name string) (*types.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE business_id = $1 AND LOWER(name) = LOWER($2)
		 ORDER BY created_at DESC LIMIT 1`,
		businessID,
		strings.TrimSpace(name),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundProduct()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve product", err)
	}
	return p, nil
}

// List returns products of a business, newest first.
func (r *ProductRepository) List(ctx context.Context, businessID string, f types.ProductFilter) ([]*types.Product, error) {
	var w whereBuilder
	w.add("business_id = ?", businessID)
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("name ILIKE ?", likePattern(s))
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+productColumns+` FROM products`+w.sql()+` ORDER BY created_at DESC`,
		w.args...,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list products", err)
	}
	defer rows.Close()

	products := make([]*types.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate products", err)
	}
	return products, nil
}

// Update writes the mutable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *types.Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products
		 SET name = $1, description = $2, category = $3, price = $4, is_active = $5, updated_at = NOW()
		 WHERE id = $6 AND business_id = $7`,
		p.Name,
		p.Description,
		p.Category,
		p.Price,
		p.IsActive,
		p.ID,
		p.BusinessID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update product", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundProduct()
	}
	return nil
}

// Delete removes a product. Its sales are kept.
func (r *ProductRepository) Delete(ctx context.Context, businessID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM products WHERE id = $1 AND business_id = $2`,
		id,
		businessID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundProduct()
	}
	return nil
}
