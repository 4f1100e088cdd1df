package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/analytics"
	"bizpulse/internal/billing"
	"bizpulse/internal/core"
	"bizpulse/internal/types"
)

// PlanLookup resolves what a user's current plan unlocks.
type PlanLookup interface {
	Current(ctx context.Context, userID string) (*billing.CurrentPlan, error)
}

// ReportComputer builds an analytics report for a business.
type ReportComputer interface {
	Compute(ctx context.Context, businessID string, requestedDays int, caps types.PlanCapabilities) (*analytics.Report, error)
}

// AnalyticsHandler serves the dashboard report.
type AnalyticsHandler struct {
	businesses *BusinessResolver
	plans      PlanLookup
	reports    ReportComputer
}

func NewAnalyticsHandler(businesses *BusinessResolver, plans PlanLookup, reports ReportComputer) *AnalyticsHandler {
	return &AnalyticsHandler{businesses: businesses, plans: plans, reports: reports}
}

func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analytics", h.HandleGet)
}

// HandleGet returns the report for ?period=N days, clamped to the plan's
// lookback.
func (h *AnalyticsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, biz, err := h.businesses.Resolve(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	current, err := h.plans.Current(r.Context(), actor.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	report, err := computeReport(r, h.reports, biz.ID, current)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, report)
}

// computeReport builds the report for the requested ?period under the
// caller's current plan. Access.PlanName carries the plan's display name.
func computeReport(r *http.Request, reports ReportComputer, businessID string, current *billing.CurrentPlan) (*analytics.Report, error) {
	report, err := reports.Compute(r.Context(), businessID, analytics.ParsePeriodDays(r.URL.Query().Get("period")), current.Capabilities)
	if err != nil {
		return nil, err
	}
	report.Access.PlanName = current.Shape.DisplayName
	return report, nil
}
