package db

import (
	"context"

	"bizpulse/internal/types"
)

// PasswordResetRepository stores password reset requests.
type PasswordResetRepository struct {
	db DBTX
}

func NewPasswordResetRepository(db DBTX) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

func (r *PasswordResetRepository) Create(ctx context.Context, req *types.PasswordResetRequest) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO password_resets (id, user_id, token_hash, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID,
		req.UserID,
		req.TokenHash,
		req.Status,
		req.ExpiresAt,
		req.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store password reset", err)
	}
	return nil
}
