package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizpulse/internal/analytics"
	"bizpulse/internal/core"
	"bizpulse/internal/insights"
	"bizpulse/internal/types"
)

// InsightGenerator turns a report into insights.
type InsightGenerator interface {
	Generate(ctx context.Context, r *analytics.Report) *insights.Result
}

// InsightsHandler serves AI insights to plans that unlock them.
type InsightsHandler struct {
	businesses *BusinessResolver
	plans      PlanLookup
	reports    ReportComputer
	generator  InsightGenerator
}

func NewInsightsHandler(businesses *BusinessResolver, plans PlanLookup, reports ReportComputer, generator InsightGenerator) *InsightsHandler {
	return &InsightsHandler{businesses: businesses, plans: plans, reports: reports, generator: generator}
}

func (h *InsightsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/insights", h.HandleGet)
}

// HandleGet computes the report for ?period=N and derives insights from it.
// Plans without AI insights get permission_plan_insufficient.
func (h *InsightsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
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
	if !current.Capabilities.AIInsightsEnabled {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodePermissionPlan,
			"Upgrade to Business plan to unlock AI-generated insights.", nil,
			map[string]any{"planName": current.Shape.Name}))
		return
	}

	report, err := computeReport(r, h.reports, biz.ID, current)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, h.generator.Generate(r.Context(), report))
}
