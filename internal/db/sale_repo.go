package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// SaleRepository provides data access for the sales table, scoped to a business.
type SaleRepository struct {
	db DBTX
}

func NewSaleRepository(db DBTX) *SaleRepository {
	return &SaleRepository{db: db}
}

const saleColumns = `id, business_id, product_id, product_name, category, quantity,
	unit_price, total, customer_name, date, created_at`

func scanSale(row pgx.Row) (*types.Sale, error) {
	var s types.Sale
	err := row.Scan(
		&s.ID,
		&s.BusinessID,
		&s.ProductID,
		&s.ProductName,
		&s.Category,
		&s.Quantity,
		&s.UnitPrice,
		&s.Total,
		&s.CustomerName,
		&s.Date,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func notFoundSale() *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundSale, "Sale not found", nil)
}

func (r *SaleRepository) Create(ctx context.Context, s *types.Sale) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sales (id, business_id, product_id, product_name, category, quantity,
		 unit_price, total, customer_name, date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID,
		s.BusinessID,
		s.ProductID,
		s.ProductName,
		s.Category,
		s.Quantity,
		s.UnitPrice,
		s.Total,
		s.CustomerName,
		s.Date,
		s.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create sale", err)
	}
	return nil
}

func (r *SaleRepository) GetByID(ctx context.Context, businessID, id string) (*types.Sale, error) {
	s, err := scanSale(r.db.QueryRow(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE id = $1 AND business_id = $2`,
		id,
		businessID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundSale()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve sale", err)
	}
	return s, nil
}

func saleFilterWhere(businessID string, f types.SaleFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("business_id = ?", businessID)
	if f.ProductID != "" {
		w.add("product_id = ?", f.ProductID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("product_name ILIKE ?", likePattern(s))
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.StartDate != nil {
		w.add("date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("date <= ?", *f.EndDate)
	}
	return w
}

// List returns one page of sales, newest first, and the total match count.
// A zero limit returns every match.
func (r *SaleRepository) List(ctx context.Context, businessID string, f types.SaleFilter) ([]*types.Sale, int, error) {
	w := saleFilterWhere(businessID, f)
	where := w.sql()

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, w.args...).Scan(&total); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count sales", err)
	}

	query := `SELECT ` + saleColumns + ` FROM sales` + where + ` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		limit := w.next(f.Limit)
		offset := w.next(f.Offset())
		query += ` LIMIT ` + limit + ` OFFSET ` + offset
	}

	sales, err := r.collect(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

// ListSalesInRange returns every sale of a business dated within
// [start, end]. It backs the analytics aggregator.
func (r *SaleRepository) ListSalesInRange(ctx context.Context, businessID string, start, end time.Time) ([]types.Sale, error) {
	ptrs, err := r.collect(ctx,
		`SELECT `+saleColumns+` FROM sales
		 WHERE business_id = $1 AND date >= $2 AND date <= $3`,
		businessID, start, end,
	)
	if err != nil {
		return nil, err
	}
	out := make([]types.Sale, len(ptrs))
	for i, s := range ptrs {
		out[i] = *s
	}
	return out, nil
}

func (r *SaleRepository) collect(ctx context.Context, query string, args ...any) ([]*types.Sale, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sales", err)
	}
	defer rows.Close()

	sales := make([]*types.Sale, 0)
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan sale", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate sales", err)
	}
	return sales, nil
}

// Update rewrites the product snapshot, amounts and date of a sale.
func (r *SaleRepository) Update(ctx context.Context, s *types.Sale) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sales
		 SET product_id = $1, product_name = $2, category = $3, quantity = $4,
		     unit_price = $5, total = $6, customer_name = $7, date = $8
		 WHERE id = $9 AND business_id = $10`,
		s.ProductID,
		s.ProductName,
		s.Category,
		s.Quantity,
		s.UnitPrice,
		s.Total,
		s.CustomerName,
		s.Date,
		s.ID,
		s.BusinessID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update sale", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundSale()
	}
	return nil
}

func (r *SaleRepository) Delete(ctx context.Context, businessID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sales WHERE id = $1 AND business_id = $2`,
		id,
		businessID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete sale", err)
	}
	if tag.RowsAffected() == 0 {
		return notFoundSale()
	}
	return nil
}
