package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table.
// The partial unique index on (user_id) WHERE status = 'active' guarantees
// at most one active subscription per user.
type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, billing_cycle, start_date, end_date, created_at, updated_at`

func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var s types.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&s.Status,
		&s.BillingCycle,
		&s.StartDate,
		&s.EndDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveByUser returns (nil, nil) when the user has no active subscription.
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID string) (*types.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND status = 'active'`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// Create inserts a subscription. A second active subscription for the same
// user is rejected as a concurrent modification.
func (r *SubscriptionRepository) Create(ctx context.Context, s *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (id, user_id, plan_id, status, billing_cycle, start_date, end_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		s.ID,
		s.UserID,
		s.PlanID,
		s.Status,
		s.BillingCycle,
		s.StartDate,
		s.EndDate,
		s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictConcurrent, "an active subscription already exists", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create subscription", err)
	}
	return nil
}

// ChangePlan switches plan and cycle, leaving the billing period alone.
func (r *SubscriptionRepository) ChangePlan(ctx context.Context, id, planID string, cycle types.BillingCycle) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions SET plan_id = $1, billing_cycle = $2, updated_at = NOW() WHERE id = $3`,
		planID,
		cycle,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to change subscription plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "Subscription not found", nil)
	}
	return nil
}

// Renew starts a new billing period and marks the subscription active.
func (r *SubscriptionRepository) Renew(ctx context.Context, s *types.Subscription) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET plan_id = $1, billing_cycle = $2, start_date = $3, end_date = $4,
		     status = 'active', updated_at = $5
		 WHERE id = $6`,
		s.PlanID,
		s.BillingCycle,
		s.StartDate,
		s.EndDate,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to renew subscription", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "Subscription not found", nil)
	}
	return nil
}
