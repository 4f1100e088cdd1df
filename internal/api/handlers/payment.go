package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/external"
	"bizpulse/internal/types"
)

// maxWebhookBodySize bounds a provider webhook payload.
const maxWebhookBodySize = 64 << 10

// PaymentRecorder counts processed payments.
type PaymentRecorder interface {
	RecordPayment(provider string, status types.PaymentStatus)
}

type purchasedPlanView struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	DisplayName  string                 `json:"displayName"`
	Price        float64                `json:"price"`
	BasePrice    float64                `json:"basePrice"`
	BillingCycle types.BillingCycle     `json:"billingCycle"`
	Discount     types.PlanDiscount     `json:"discount"`
	Capabilities types.PlanCapabilities `json:"capabilities"`
}

type paidSubscriptionView struct {
	ID           string                   `json:"id"`
	PlanID       string                   `json:"planId"`
	Status       types.SubscriptionStatus `json:"status"`
	BillingCycle types.BillingCycle       `json:"billingCycle"`
	StartDate    string                   `json:"startDate"`
	EndDate      *string                  `json:"endDate"`
	LastPayment  *types.PaymentRecord     `json:"lastPayment,omitempty"`
}

func newPaidSubscriptionView(sub *types.Subscription) *paidSubscriptionView {
	if sub == nil {
		return nil
	}
	return &paidSubscriptionView{
		ID:           sub.ID,
		PlanID:       sub.PlanID,
		Status:       sub.Status,
		BillingCycle: sub.BillingCycle,
		StartDate:    types.FormatTimestamp(sub.StartDate),
		EndDate:      formatOptional(sub.EndDate),
	}
}

// PurchaseResponse is the body returned by POST /payment.
type PurchaseResponse struct {
	Success      bool                  `json:"success"`
	Message      string                `json:"message"`
	Payment      *types.PaymentRecord  `json:"payment"`
	Plan         purchasedPlanView     `json:"plan"`
	Subscription *paidSubscriptionView `json:"subscription"`
}

// PaymentHandler serves purchases through the payment simulator and, when
// configured, hosted checkout with its webhook.
type PaymentHandler struct {
	billing  BillingService
	checkout external.CheckoutProvider
	webhooks external.WebhookVerifier
	metrics  PaymentRecorder
	clock    types.Clock
	logger   *slog.Logger
}

// PaymentOption configures a PaymentHandler.
type PaymentOption func(*PaymentHandler)

// WithCheckout enables POST /payment/checkout and POST /payment/webhook.
func WithCheckout(checkout external.CheckoutProvider, webhooks external.WebhookVerifier) PaymentOption {
	return func(h *PaymentHandler) {
		h.checkout = checkout
		h.webhooks = webhooks
	}
}

// WithPaymentClock overrides the clock stamping webhook payments.
func WithPaymentClock(c types.Clock) PaymentOption {
	return func(h *PaymentHandler) { h.clock = c }
}

// WithPaymentMetrics reports every processed payment.
func WithPaymentMetrics(m PaymentRecorder) PaymentOption {
	return func(h *PaymentHandler) { h.metrics = m }
}

func NewPaymentHandler(billing BillingService, logger *slog.Logger, opts ...PaymentOption) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &PaymentHandler{billing: billing, clock: types.RealClock{}, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/payment", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Post("/", h.HandlePurchase)
		r.Post("/checkout", h.HandleCheckout)
		r.Post("/webhook", h.HandleWebhook)
	})
}

// HandlePurchase charges one cycle of a plan through the simulator and
// activates it immediately.
func (h *PaymentHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
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

	cycle := req.cycle()
	result, err := h.billing.Purchase(r.Context(), actor.ID, req.plan(), cycle)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.recordPayment(result.Payment)

	shape := billing.ResolvePlanShape(result.Plan)
	pricing := billing.PricingFor(result.Plan)
	message := fmt.Sprintf("%s plan activated successfully.", shape.DisplayName)
	if result.Payment.Amount > 0 {
		message = fmt.Sprintf("Mock payment succeeded. %s plan is now active.", shape.DisplayName)
	}

	core.Success(w, r, http.StatusOK, PurchaseResponse{
		Success: true,
		Message: message,
		Payment: result.Payment,
		Plan: purchasedPlanView{
			ID:           result.Plan.ID,
			Name:         shape.Name,
			DisplayName:  shape.DisplayName,
			Price:        result.Payment.Amount,
			BasePrice:    billing.BasePriceForCycle(result.Plan, cycle),
			BillingCycle: cycle,
			Discount:     pricing.Discount,
			Capabilities: billing.CapabilitiesFor(shape),
		},
		Subscription: newPaidSubscriptionView(result.Subscription),
	})
}

// HandleGet returns the caller's active subscription, its last payment and
// the pricing of its plan.
func (h *PaymentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	current, err := h.billing.Current(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if current.Subscription == nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSubscription, "No active subscription", nil))
		return
	}

	last, err := h.billing.LastPayment(r.Context(), current.Subscription.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	sub := newPaidSubscriptionView(current.Subscription)
	sub.LastPayment = last

	pricing := billing.PricingFor(current.Plan)
	core.Success(w, r, http.StatusOK, map[string]any{
		"subscription": sub,
		"plan": map[string]any{
			"name":             current.Shape.Name,
			"displayName":      current.Shape.DisplayName,
			"priceMonthly":     pricing.EffectivePriceMonthly,
			"priceYearly":      pricing.EffectivePriceYearly,
			"basePriceMonthly": pricing.BasePriceMonthly,
			"basePriceYearly":  pricing.BasePriceYearly,
			"discount":         pricing.Discount,
			"capabilities":     current.Capabilities,
		},
	})
}

// HandleCheckout opens a hosted checkout session for one cycle of a paid
// plan. The subscription is activated later by the webhook.
func (h *PaymentHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		core.Error(w, r, errProviderUnavailable())
		return
	}
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

	plan, err := h.billing.ResolveActivePlan(r.Context(), req.plan())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	cycle := req.cycle()
	amount := billing.PriceForCycle(plan, cycle)
	if amount <= 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPrice,
			"Plan has no charge for this billing cycle; use POST /v1/subscription instead", nil))
		return
	}

	shape := billing.ResolvePlanShape(plan)
	session, err := h.checkout.CreateCheckoutSession(r.Context(), external.CheckoutRequest{
		UserID:      actor.ID,
		Email:       actor.Email,
		PlanID:      plan.ID,
		PlanName:    shape.Name,
		DisplayName: shape.DisplayName,
		Cycle:       cycle,
		Amount:      amount,
		Currency:    types.DefaultCurrency,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, session)
}

// HandleWebhook receives provider events. Paid checkout completions
// activate the purchased plan and record the payment; other events are
// acknowledged and ignored.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		core.Error(w, r, errProviderUnavailable())
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "Failed to read webhook body", err))
		return
	}

	completion, err := h.webhooks.ParseCheckoutCompletion(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if completion == nil || !completion.Paid || completion.UserID == "" {
		core.Success(w, r, http.StatusOK, map[string]bool{"received": true})
		return
	}

	plan, err := h.billing.ResolveActivePlan(r.Context(), completion.PlanID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "checkout completed for unknown plan",
			"session_id", completion.SessionID,
			"plan_id", completion.PlanID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	payment := &types.PaymentRecord{
		Provider:      external.StripeProvider,
		TransactionID: completion.TransactionID,
		Status:        types.PaymentSucceeded,
		Amount:        completion.Amount,
		Currency:      strings.ToUpper(completion.Currency),
		BillingCycle:  completion.Cycle,
		PaidAt:        h.clock.Now(),
	}
	if _, err := h.billing.Activate(r.Context(), completion.UserID, plan, completion.Cycle, payment); err != nil {
		core.Error(w, r, err)
		return
	}
	h.recordPayment(payment)

	h.logger.InfoContext(r.Context(), "checkout completed",
		"session_id", completion.SessionID,
		"user_id", completion.UserID,
		"plan_id", plan.ID,
	)
	core.Success(w, r, http.StatusOK, map[string]bool{"received": true})
}

func (h *PaymentHandler) recordPayment(p *types.PaymentRecord) {
	if h.metrics == nil || p == nil {
		return
	}
	h.metrics.RecordPayment(p.Provider, p.Status)
}

func errProviderUnavailable() error {
	return types.NewAppError(types.ErrCodeValidationPaymentProvider, "Online checkout is not configured", nil)
}
