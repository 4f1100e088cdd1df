package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bizpulse/internal/types"
)

// PaymentRepository stores payment receipts.
type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record inserts a receipt. Replaying a transaction id is a no-op, which
// makes processor webhook retries safe.
func (r *PaymentRepository) Record(ctx context.Context, p *types.PaymentRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, subscription_id, user_id, provider, transaction_id, status,
		 amount, currency, billing_cycle, paid_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (transaction_id) DO NOTHING`,
		p.ID,
		p.SubscriptionID,
		p.UserID,
		p.Provider,
		p.TransactionID,
		p.Status,
		p.Amount,
		p.Currency,
		p.BillingCycle,
		p.PaidAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record payment", err)
	}
	return nil
}

// LatestForSubscription returns (nil, nil) when no payment exists.
func (r *PaymentRepository) LatestForSubscription(ctx context.Context, subscriptionID string) (*types.PaymentRecord, error) {
	var p types.PaymentRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, subscription_id, user_id, provider, transaction_id, status,
		        amount, currency, billing_cycle, paid_at
		 FROM payments
		 WHERE subscription_id = $1
		 ORDER BY paid_at DESC
		 LIMIT 1`,
		subscriptionID,
	).Scan(
		&p.ID,
		&p.SubscriptionID,
		&p.UserID,
		&p.Provider,
		&p.TransactionID,
		&p.Status,
		&p.Amount,
		&p.Currency,
		&p.BillingCycle,
		&p.PaidAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve payment", err)
	}
	return &p, nil
}
