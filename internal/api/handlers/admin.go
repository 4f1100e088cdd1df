package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"bizpulse/internal/analytics"
	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

const (
	defaultAdminUserLimit = 50
	maxAdminUserLimit     = 500
)

// StatsLoader loads the raw platform totals.
type StatsLoader interface {
	LoadPlatformInput(ctx context.Context) (*analytics.PlatformInput, error)
}

// UserDirectory lists accounts for administrators.
type UserDirectory interface {
	List(ctx context.Context, f types.UserFilter) ([]*types.User, int, error)
	CountPerRole(ctx context.Context) (map[types.Role]int, error)
}

// RoleChanger applies role changes with the last-admin and self-change rules.
type RoleChanger interface {
	ChangeRole(ctx context.Context, actor *types.Actor, targetID string, role types.Role) error
}

// PlanAdmin reads and reprices plans.
type PlanAdmin interface {
	PlanCatalog
	Resolve(ctx context.Context, identifier string) (*types.SubscriptionPlan, error)
	UpdatePricing(ctx context.Context, id string, u types.PlanUpdate) (*types.SubscriptionPlan, error)
}

// ChangeRoleRequest is the body of PUT /admin/users/{id}/role.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// UpdatePricingRequest is the body of PUT /admin/pricing/{planId}. Prices
// are required; the discount fields are optional.
type UpdatePricingRequest struct {
	PriceMonthly    *float64 `json:"priceMonthly"`
	PriceYearly     *float64 `json:"priceYearly"`
	DiscountActive  bool     `json:"discountActive"`
	DiscountPercent *float64 `json:"discountPercent"`
	DiscountCode    string   `json:"discountCode"`
	DiscountEndsAt  string   `json:"discountEndsAt"`
}

// toPlanUpdate checks the request and normalizes the discount. An inactive
// discount clears percent, code and end date; the stored flag is only set
// when the percent is positive.
func (req UpdatePricingRequest) toPlanUpdate() (types.PlanUpdate, error) {
	if !nonNegative(req.PriceMonthly) || !nonNegative(req.PriceYearly) {
		return types.PlanUpdate{}, types.NewAppError(types.ErrCodeValidationInvalidPrice, "Prices must be valid non-negative numbers", nil)
	}
	percent := 0.0
	if req.DiscountPercent != nil {
		percent = *req.DiscountPercent
	}
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return types.PlanUpdate{}, types.NewAppError(types.ErrCodeValidationInvalidDiscount, "Discount percent must be between 0 and 100", nil)
	}

	u := types.PlanUpdate{
		PriceMonthly: *req.PriceMonthly,
		PriceYearly:  *req.PriceYearly,
	}
	if req.DiscountEndsAt != "" {
		endsAt, err := parseCalendarDate(req.DiscountEndsAt, false)
		if err != nil {
			return types.PlanUpdate{}, types.NewAppError(types.ErrCodeValidationInvalidDate, "Invalid discount end date", err)
		}
		u.DiscountEndsAt = &endsAt
	}
	if !req.DiscountActive {
		u.DiscountEndsAt = nil
		return u, nil
	}
	u.DiscountActive = percent > 0
	u.DiscountPercent = percent
	u.DiscountCode = strings.TrimSpace(req.DiscountCode)
	return u, nil
}

func nonNegative(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v >= 0
}

type adminPlanView struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	DisplayName           string             `json:"displayName"`
	PriceMonthly          float64            `json:"priceMonthly"`
	PriceYearly           float64            `json:"priceYearly"`
	EffectivePriceMonthly float64            `json:"effectivePriceMonthly"`
	EffectivePriceYearly  float64            `json:"effectivePriceYearly"`
	Discount              types.PlanDiscount `json:"discount"`
}

func newAdminPlanView(plan *types.SubscriptionPlan) adminPlanView {
	shape := billing.ResolvePlanShape(plan)
	pricing := billing.PricingFor(plan)
	return adminPlanView{
		ID:                    plan.ID,
		Name:                  shape.Name,
		DisplayName:           shape.DisplayName,
		PriceMonthly:          pricing.BasePriceMonthly,
		PriceYearly:           pricing.BasePriceYearly,
		EffectivePriceMonthly: pricing.EffectivePriceMonthly,
		EffectivePriceYearly:  pricing.EffectivePriceYearly,
		Discount:              pricing.Discount,
	}
}

type adminUserView struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Role      types.Role `json:"role"`
	CreatedAt string     `json:"createdAt"`
}

type userManagement struct {
	Search        string `json:"search"`
	RoleFilter    string `json:"roleFilter"`
	FilteredUsers int    `json:"filteredUsers"`
	Limit         int    `json:"limit"`
}

// AdminStatsResponse is the body of GET /admin/stats.
type AdminStatsResponse struct {
	analytics.PlatformStats
	RecentUsers    []adminUserView       `json:"recentUsers"`
	UsersByRole    []analytics.RoleCount `json:"usersByRole"`
	UserManagement userManagement        `json:"userManagement"`
}

// AdminHandler serves the administrator dashboard. Every route requires the
// admin role.
type AdminHandler struct {
	stats     StatsLoader
	users     UserDirectory
	roles     RoleChanger
	plans     PlanAdmin
	validator *core.Validator
	logger    *slog.Logger
}

func NewAdminHandler(stats StatsLoader, users UserDirectory, roles RoleChanger, plans PlanAdmin, v *core.Validator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{stats: stats, users: users, roles: roles, plans: plans, validator: v, logger: logger}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(core.RequireRole(types.RoleAdmin))
		r.Get("/stats", h.HandleStats)
		r.Put("/users/{id}/role", h.HandleChangeRole)
		r.Get("/pricing", h.HandleListPricing)
		r.Put("/pricing/{planId}", h.HandleUpdatePricing)
	})
}

// HandleStats returns platform statistics and a filtered user list
// (?search, ?role, ?limit). The three loads run concurrently.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.TrimSpace(q.Get("search"))
	roleFilter := types.Role(strings.TrimSpace(q.Get("role")))
	limit := min(queryInt(r, "limit", defaultAdminUserLimit), maxAdminUserLimit)

	var (
		input    *analytics.PlatformInput
		users    []*types.User
		filtered int
		perRole  map[types.Role]int
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		input, err = h.stats.LoadPlatformInput(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, filtered, err = h.users.List(ctx, types.UserFilter{Search: search, Role: roleFilter, Limit: limit})
		return err
	})
	g.Go(func() error {
		var err error
		perRole, err = h.users.CountPerRole(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		core.Error(w, r, err)
		return
	}

	recent := make([]adminUserView, 0, len(users))
	for _, u := range users {
		recent = append(recent, adminUserView{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			CreatedAt: types.FormatTimestamp(u.CreatedAt),
		})
	}

	byRole := make([]analytics.RoleCount, 0, len(perRole))
	for role, n := range perRole {
		byRole = append(byRole, analytics.RoleCount{Role: role, Count: n})
	}
	slices.SortFunc(byRole, func(a, b analytics.RoleCount) int { return strings.Compare(string(a.Role), string(b.Role)) })

	shownRole := "all"
	if roleFilter.Valid() {
		shownRole = string(roleFilter)
	}

	core.Success(w, r, http.StatusOK, AdminStatsResponse{
		PlatformStats: analytics.ComputePlatformStats(*input),
		RecentUsers:   recent,
		UsersByRole:   byRole,
		UserManagement: userManagement{
			Search:        search,
			RoleFilter:    shownRole,
			FilteredUsers: filtered,
			Limit:         limit,
		},
	})
}

// HandleChangeRole promotes or demotes a user.
func (h *AdminHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req ChangeRoleRequest
	if err := decodeAndValidate(w, r, h.validator, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	targetID := chi.URLParam(r, "id")
	if err := h.roles.ChangeRole(r.Context(), actor, targetID, types.Role(req.Role)); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, messageResponse{Success: true})
}

// HandleListPricing lists active plans with base and effective prices.
func (h *AdminHandler) HandleListPricing(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	views := make([]adminPlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newAdminPlanView(p))
	}
	core.Success(w, r, http.StatusOK, map[string][]adminPlanView{"plans": views})
}

// HandleUpdatePricing sets a plan's prices and discount. The plan is
// addressed by id or name.
func (h *AdminHandler) HandleUpdatePricing(w http.ResponseWriter, r *http.Request) {
	var req UpdatePricingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	update, err := req.toPlanUpdate()
	if err != nil {
		core.Error(w, r, err)
		return
	}

	plan, err := h.plans.Resolve(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	updated, err := h.plans.UpdatePricing(r.Context(), plan.ID, update)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "plan pricing updated",
		"plan_id", updated.ID,
		"discount_active", updated.DiscountActive,
	)
	core.Success(w, r, http.StatusOK, map[string]adminPlanView{"plan": newAdminPlanView(updated)})
}
