package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// PlanRepository provides data access for the subscription_plans table.
type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, display_name, description, price_monthly, price_yearly,
	discount_active, discount_percent, discount_code, discount_ends_at, features,
	is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (*types.SubscriptionPlan, error) {
	var p types.SubscriptionPlan
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.DisplayName,
		&p.Description,
		&p.PriceMonthly,
		&p.PriceYearly,
		&p.DiscountActive,
		&p.DiscountPercent,
		&p.DiscountCode,
		&p.DiscountEndsAt,
		&p.Features,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func notFoundPlan() *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundPlan, "Plan not found", nil)
}

// Resolve finds a plan by identifier. An id match wins over a name match;
// names compare case-insensitively.
func (r *PlanRepository) Resolve(ctx context.Context, identifier string) (*types.SubscriptionPlan, error) {
	if identifier == "" {
		return nil, notFoundPlan()
	}
	p, err := scanPlan(r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM subscription_plans
		 WHERE id = $1 OR LOWER(name) = LOWER($1)
		 ORDER BY (id = $1) DESC
		 LIMIT 1`,
		identifier,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundPlan()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve plan", err)
	}
	return p, nil
}

// ListActive returns active plans ordered by base monthly price.
func (r *PlanRepository) ListActive(ctx context.Context) ([]*types.SubscriptionPlan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM subscription_plans
		WHERE is_active ORDER BY price_monthly ASC, name ASC`)
}

// ListAll returns every plan, including retired ones.
func (r *PlanRepository) ListAll(ctx context.Context) ([]*types.SubscriptionPlan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY price_monthly ASC, name ASC`)
}

func (r *PlanRepository) list(ctx context.Context, query string) ([]*types.SubscriptionPlan, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	plans := make([]*types.SubscriptionPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate plans", err)
	}
	return plans, nil
}

// UpdatePricing writes the admin-editable pricing fields and returns the
// stored plan.
func (r *PlanRepository) UpdatePricing(ctx context.Context, id string, u types.PlanUpdate) (*types.SubscriptionPlan, error) {
	p, err := scanPlan(r.db.QueryRow(ctx,
		`UPDATE subscription_plans
		 SET price_monthly = $1, price_yearly = $2, discount_active = $3,
		     discount_percent = $4, discount_code = $5, discount_ends_at = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING `+planColumns,
		u.PriceMonthly,
		u.PriceYearly,
		u.DiscountActive,
		u.DiscountPercent,
		u.DiscountCode,
		u.DiscountEndsAt,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundPlan()
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to update plan pricing", err)
	}
	return p, nil
}

// Upsert inserts a plan or replaces the catalog fields of the plan with the
// same name. The existing id is kept on conflict.
func (r *PlanRepository) Upsert(ctx context.Context, p *types.SubscriptionPlan) error {
	features := p.Features
	if len(features) == 0 {
		features = json.RawMessage(`[]`)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscription_plans (id, name, display_name, description, price_monthly, price_yearly,
		 discount_active, discount_percent, discount_code, discount_ends_at, features, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (name) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     description = EXCLUDED.description,
		     price_monthly = EXCLUDED.price_monthly,
		     price_yearly = EXCLUDED.price_yearly,
		     discount_active = EXCLUDED.discount_active,
		     discount_percent = EXCLUDED.discount_percent,
		     discount_code = EXCLUDED.discount_code,
		     discount_ends_at = EXCLUDED.discount_ends_at,
		     features = EXCLUDED.features,
		     is_active = EXCLUDED.is_active,
		     updated_at = NOW()`,
		p.ID,
		p.Name,
		p.DisplayName,
		p.Description,
		p.PriceMonthly,
		p.PriceYearly,
		p.DiscountActive,
		p.DiscountPercent,
		p.DiscountCode,
		p.DiscountEndsAt,
		features,
		p.IsActive,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert plan", err)
	}
	return nil
}
