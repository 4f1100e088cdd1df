package db

import (
	"context"

	"golang.org/x/sync/errgroup"

	"bizpulse/internal/analytics"
	"bizpulse/internal/types"
)

// StatsRepository loads platform-wide totals for the admin dashboard.
// Queries run concurrently, so db must be a pool rather than a transaction.
type StatsRepository struct {
	db DBTX
}

func NewStatsRepository(db DBTX) *StatsRepository {
	return &StatsRepository{db: db}
}

// LoadPlatformInput gathers every figure PlatformStats is computed from.
func (r *StatsRepository) LoadPlatformInput(ctx context.Context) (*analytics.PlatformInput, error) {
	var in analytics.PlatformInput
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.db.QueryRow(gctx,
			`SELECT COUNT(*),
			        COUNT(*) FILTER (WHERE role = 'admin'),
			        COUNT(*) FILTER (WHERE role = 'user')
			 FROM users`,
		).Scan(&in.TotalUsers, &in.AdminUsers, &in.BusinessOwners)
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx, `SELECT COUNT(*) FROM businesses`).Scan(&in.TotalBusinesses)
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx, `SELECT COUNT(*) FROM products`).Scan(&in.TotalProducts)
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx,
			`SELECT COUNT(*), COALESCE(SUM(total), 0) FROM sales`,
		).Scan(&in.TotalSalesRecords, &in.TotalSalesRevenue)
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx,
			`SELECT COUNT(*) FROM subscriptions WHERE status = 'active'`,
		).Scan(&in.ActiveSubscriptionCount)
	})
	g.Go(func() error {
		subs, err := r.activeSubscriptions(gctx)
		if err != nil {
			return err
		}
		in.ActiveSubscriptions = subs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load platform statistics", err)
	}
	return &in, nil
}

// activeSubscriptions lists active subscriptions joined to their plan in
// creation order. Subscriptions pointing at a missing plan drop out of the join.
func (r *StatsRepository) activeSubscriptions(ctx context.Context) ([]analytics.ActiveSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.start_date, p.name, p.display_name, p.price_monthly
		 FROM subscriptions s
		 JOIN subscription_plans p ON p.id = s.plan_id
		 WHERE s.status = 'active'
		 ORDER BY s.created_at ASC, s.id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]analytics.ActiveSubscription, 0)
	for rows.Next() {
		var a analytics.ActiveSubscription
		if err := rows.Scan(&a.StartDate, &a.PlanName, &a.PlanDisplayName, &a.PlanPriceMonthly); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
