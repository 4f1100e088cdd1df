package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bizpulse/internal/types"
)

// PlanStore resolves stored plans.
type PlanStore interface {
	// Resolve looks a plan up by id, then by name. Missing plans return
	// an AppError with ErrCodeNotFoundPlan.
	Resolve(ctx context.Context, identifier string) (*types.SubscriptionPlan, error)
}

// SubscriptionStore persists subscriptions.
type SubscriptionStore interface {
	// GetActiveByUser returns (nil, nil) when the user has no active subscription.
	GetActiveByUser(ctx context.Context, userID string) (*types.Subscription, error)
	Create(ctx context.Context, sub *types.Subscription) error
	ChangePlan(ctx context.Context, id, planID string, cycle types.BillingCycle) error
	Renew(ctx context.Context, sub *types.Subscription) error
}

// PaymentStore persists payment receipts.
type PaymentStore interface {
	Record(ctx context.Context, p *types.PaymentRecord) error
	// LatestForSubscription returns (nil, nil) when no payment exists.
	LatestForSubscription(ctx context.Context, subscriptionID string) (*types.PaymentRecord, error)
}

// Service owns the subscription lifecycle: plan changes, simulated
// purchases and activations confirmed by an external processor.
type Service struct {
	plans    PlanStore
	subs     SubscriptionStore
	payments PaymentStore
	provider PaymentProvider
	clock    types.Clock
	logger   *slog.Logger
}

// NewService wires the subscription lifecycle.
func NewService(plans PlanStore, subs SubscriptionStore, payments PaymentStore, provider PaymentProvider, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		plans:    plans,
		subs:     subs,
		payments: payments,
		provider: provider,
		clock:    clock,
		logger:   logger,
	}
}

// CurrentPlan describes what a user is entitled to right now.
type CurrentPlan struct {
	Subscription *types.Subscription
	Plan         *types.SubscriptionPlan
	Shape        types.PlanShape
	Capabilities types.PlanCapabilities
}

// Current returns the user's active subscription and its plan. Users without
// an active subscription, or whose plan no longer exists, are on Free.
func (s *Service) Current(ctx context.Context, userID string) (*CurrentPlan, error) {
	sub, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var plan *types.SubscriptionPlan
	if sub != nil {
		plan, err = s.plans.Resolve(ctx, sub.PlanID)
		if err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	shape := ResolvePlanShape(plan)
	return &CurrentPlan{
		Subscription: sub,
		Plan:         plan,
		Shape:        shape,
		Capabilities: CapabilitiesFor(shape),
	}, nil
}

// ResolveActivePlan resolves a plan identifier that a user asked to buy or
// switch to. Inactive plans are reported as not found.
func (s *Service) ResolveActivePlan(ctx context.Context, identifier string) (*types.SubscriptionPlan, error) {
	if identifier == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "Plan ID is required", nil)
	}
	plan, err := s.plans.Resolve(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "Plan not found", nil)
	}
	return plan, nil
}

// ChangePlan moves the user's active subscription to another plan and cycle
// without touching its dates. Users without one get a new subscription
// running for one cycle from now.
func (s *Service) ChangePlan(ctx context.Context, userID, identifier string, cycle types.BillingCycle) (*types.Subscription, error) {
	plan, err := s.ResolveActivePlan(ctx, identifier)
	if err != nil {
		return nil, err
	}

	existing, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.subs.ChangePlan(ctx, existing.ID, plan.ID, cycle); err != nil {
			return nil, err
		}
		existing.PlanID = plan.ID
		existing.BillingCycle = cycle
		existing.UpdatedAt = s.clock.Now()
		return existing, nil
	}

	now := s.clock.Now()
	end := now.AddDate(0, 0, cycle.Days())
	sub := &types.Subscription{
		ID:           NewSubscriptionID(),
		UserID:       userID,
		PlanID:       plan.ID,
		Status:       types.SubscriptionActive,
		BillingCycle: cycle,
		StartDate:    now,
		EndDate:      &end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// PurchaseResult is the outcome of a successful purchase.
type PurchaseResult struct {
	Payment      *types.PaymentRecord
	Plan         *types.SubscriptionPlan
	Subscription *types.Subscription
}

// Purchase charges the effective price of one cycle through the configured
// provider and activates the plan.
func (s *Service) Purchase(ctx context.Context, userID, identifier string, cycle types.BillingCycle) (*PurchaseResult, error) {
	plan, err := s.ResolveActivePlan(ctx, identifier)
	if err != nil {
		return nil, err
	}

	payment, err := s.provider.Charge(ctx, ChargeRequest{
		UserID:       userID,
		PlanID:       plan.ID,
		Amount:       PriceForCycle(plan, cycle),
		BillingCycle: cycle,
	})
	if err != nil {
		return nil, err
	}

	sub, err := s.Activate(ctx, userID, plan, cycle, payment)
	if err != nil {
		return nil, err
	}
	return &PurchaseResult{Payment: payment, Plan: plan, Subscription: sub}, nil
}

// Activate starts a fresh billing period on the user's active subscription,
// or creates one, and records the payment against it.
func (s *Service) Activate(ctx context.Context, userID string, plan *types.SubscriptionPlan, cycle types.BillingCycle, payment *types.PaymentRecord) (*types.Subscription, error) {
	existing, err := s.subs.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	end := now.AddDate(0, 0, cycle.Days())

	sub := existing
	if sub == nil {
		sub = &types.Subscription{
			ID:        NewSubscriptionID(),
			UserID:    userID,
			Status:    types.SubscriptionActive,
			CreatedAt: now,
		}
	}
	sub.PlanID = plan.ID
	sub.BillingCycle = cycle
	sub.StartDate = now
	sub.EndDate = &end
	sub.UpdatedAt = now

	if existing != nil {
		err = s.subs.Renew(ctx, sub)
	} else {
		err = s.subs.Create(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	if payment != nil {
		if payment.ID == "" {
			payment.ID = "pay_" + uuid.NewString()
		}
		payment.SubscriptionID = sub.ID
		payment.UserID = userID
		if err := s.payments.Record(ctx, payment); err != nil {
			return nil, err
		}
		sub.LastPayment = payment
	}

	s.logger.InfoContext(ctx, "subscription activated",
		"user_id", userID,
		"plan_id", plan.ID,
		"billing_cycle", string(cycle),
		"ends_at", end.Format(time.RFC3339),
	)
	return sub, nil
}

// LastPayment returns the most recent receipt of a subscription, or nil.
func (s *Service) LastPayment(ctx context.Context, subscriptionID string) (*types.PaymentRecord, error) {
	return s.payments.LatestForSubscription(ctx, subscriptionID)
}

// NewSubscriptionID returns a fresh subscription identifier.
func NewSubscriptionID() string {
	return "sub_" + uuid.NewString()
}

func isNotFound(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundPlan
}
