package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// BusinessRepository provides data access for the businesses table.
type BusinessRepository struct {
	db DBTX
}

func NewBusinessRepository(db DBTX) *BusinessRepository {
	return &BusinessRepository{db: db}
}

const businessColumns = `id, user_id, name, description, created_at, updated_at`

func scanBusiness(row pgx.Row) (*types.Business, error) {
	var b types.Business
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Description, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BusinessRepository) Create(ctx context.Context, b *types.Business) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO businesses (id, user_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		b.ID,
		b.UserID,
		b.Name,
		b.Description,
		b.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create business", err)
	}
	return nil
}

// GetByUserID returns the caller's business, or ErrCodeNotFoundBusiness.
func (r *BusinessRepository) GetByUserID(ctx context.Context, userID string) (*types.Business, error) {
	b, err := scanBusiness(r.db.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE user_id = $1`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBusiness, "Business not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve business", err)
	}
	return b, nil
}

// Update writes name and description and returns the stored row.
func (r *BusinessRepository) Update(ctx context.Context, userID, name, description string) (*types.Business, error) {
	b, err := scanBusiness(r.db.QueryRow(ctx,
		`UPDATE businesses SET name = $1, description = $2, updated_at = NOW()
		 WHERE user_id = $3
		 RETURNING `+businessColumns,
		name,
		description,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBusiness, "Business not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update business", err)
	}
	return b, nil
}
