package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// BillingService is the subscription lifecycle used by the subscription and
// payment handlers.
type BillingService interface {
	PlanLookup
	ResolveActivePlan(ctx context.Context, identifier string) (*types.SubscriptionPlan, error)
	ChangePlan(ctx context.Context, userID, identifier string, cycle types.BillingCycle) (*types.Subscription, error)
	Purchase(ctx context.Context, userID, identifier string, cycle types.BillingCycle) (*billing.PurchaseResult, error)
	Activate(ctx context.Context, userID string, plan *types.SubscriptionPlan, cycle types.BillingCycle, payment *types.PaymentRecord) (*types.Subscription, error)
	LastPayment(ctx context.Context, subscriptionID string) (*types.PaymentRecord, error)
}

// PlanCatalog lists the plans offered for sale.
type PlanCatalog interface {
	ListActive(ctx context.Context) ([]*types.SubscriptionPlan, error)
}

// PlanSelection is the body of POST /subscription and POST /payment. The
// snake_case spellings are accepted for older clients. Any cycle other than
// "yearly" means monthly.
type PlanSelection struct {
	PlanID             string `json:"planId"`
	LegacyPlanID       string `json:"plan_id"`
	BillingCycle       string `json:"billingCycle"`
	LegacyBillingCycle string `json:"billing_cycle"`
}

func (p PlanSelection) plan() string {
	if p.PlanID != "" {
		return p.PlanID
	}
	return p.LegacyPlanID
}

func (p PlanSelection) cycle() types.BillingCycle {
	if p.BillingCycle == string(types.BillingYearly) || p.LegacyBillingCycle == string(types.BillingYearly) {
		return types.BillingYearly
	}
	return types.BillingMonthly
}

func (p PlanSelection) validate() error {
	if p.plan() == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "Plan ID is required", nil)
	}
	return nil
}

type planView struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	DisplayName      string                 `json:"displayName"`
	Description      string                 `json:"description"`
	PriceMonthly     float64                `json:"priceMonthly"`
	PriceYearly      float64                `json:"priceYearly"`
	BasePriceMonthly float64                `json:"basePriceMonthly"`
	BasePriceYearly  float64                `json:"basePriceYearly"`
	Discount         types.PlanDiscount     `json:"discount"`
	Features         []string               `json:"features"`
	Capabilities     types.PlanCapabilities `json:"capabilities"`
}

func newPlanView(plan *types.SubscriptionPlan) planView {
	shape := billing.ResolvePlanShape(plan)
	pricing := billing.PricingFor(plan)
	return planView{
		ID:               plan.ID,
		Name:             shape.Name,
		DisplayName:      shape.DisplayName,
		Description:      shape.Description,
		PriceMonthly:     pricing.EffectivePriceMonthly,
		PriceYearly:      pricing.EffectivePriceYearly,
		BasePriceMonthly: pricing.BasePriceMonthly,
		BasePriceYearly:  pricing.BasePriceYearly,
		Discount:         pricing.Discount,
		Features:         shape.Features,
		Capabilities:     billing.CapabilitiesFor(shape),
	}
}

// subscriptionView is the caller's subscription. Users without one see a
// virtual Free subscription with a null id and end date.
type subscriptionView struct {
	ID           *string                  `json:"id"`
	PlanID       string                   `json:"planId"`
	PlanName     string                   `json:"planName"`
	Status       types.SubscriptionStatus `json:"status"`
	BillingCycle types.BillingCycle       `json:"billingCycle"`
	EndDate      *string                  `json:"endDate"`
	Capabilities types.PlanCapabilities   `json:"capabilities"`
}

func newSubscriptionView(current *billing.CurrentPlan) subscriptionView {
	sub := current.Subscription
	if sub == nil {
		return subscriptionView{
			PlanID:       string(types.PlanFree),
			PlanName:     "Free",
			Status:       types.SubscriptionActive,
			BillingCycle: types.BillingMonthly,
			Capabilities: current.Capabilities,
		}
	}
	id := sub.ID
	return subscriptionView{
		ID:           &id,
		PlanID:       sub.PlanID,
		PlanName:     current.Shape.DisplayName,
		Status:       sub.Status,
		BillingCycle: sub.BillingCycle,
		EndDate:      formatOptional(sub.EndDate),
		Capabilities: current.Capabilities,
	}
}

// SubscriptionHandler serves the plan catalog and plan switching.
type SubscriptionHandler struct {
	billing BillingService
	plans   PlanCatalog
}

func NewSubscriptionHandler(billing BillingService, plans PlanCatalog) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing, plans: plans}
}

func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/subscription", h.HandleGet)
	r.Post("/subscription", h.HandleChange)
}

// HandleGet lists active plans, cheapest first. Authenticated callers also
// receive their current subscription.
func (h *SubscriptionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newPlanView(p))
	}

	resp := map[string]any{"plans": views}
	if actor, ok := types.GetActor(r.Context()); ok && actor.ID != "" {
		current, err := h.billing.Current(r.Context(), actor.ID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		resp["subscription"] = newSubscriptionView(current)
	}
	core.Success(w, r, http.StatusOK, resp)
}

// HandleChange switches the caller to another plan without charging. The
// billing period of an existing subscription is kept.
func (h *SubscriptionHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req PlanSelection
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		core.Error(w, r, err)
		return
	}

	if _, err := h.billing.ChangePlan(r.Context(), actor.ID, req.plan(), req.cycle()); err != nil {
		core.Error(w, r, err)
		return
	}
	current, err := h.billing.Current(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, map[string]subscriptionView{"subscription": newSubscriptionView(current)})
}
