// Package insights derives plain-language findings from an analytics report.
// A deterministic rule engine always runs; an optional generative narrator
// writes the executive summary when it is configured and healthy.
package insights

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"bizpulse/internal/analytics"
)

// Kind classifies an insight for display.
type Kind string

const (
	KindWarning        Kind = "warning"
	KindSuccess        Kind = "success"
	KindInfo           Kind = "info"
	KindRecommendation Kind = "recommendation"
)

// Insight is one finding about the period.
type Insight struct {
	Kind     Kind   `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// Thresholds tune the rule engine. Percentages are in points.
type Thresholds struct {
	RevenueDropPercent   float64
	GrowthPercent        float64
	ConcentrationPercent float64
	// AOVDeclinePercent is the drop in average order value versus the
	// previous period that triggers a pricing recommendation.
	AOVDeclinePercent float64
}

// DefaultThresholds returns the production rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RevenueDropPercent:   10,
		GrowthPercent:        10,
		ConcentrationPercent: 50,
		AOVDeclinePercent:    10,
	}
}

// RuleEngine evaluates a report against fixed thresholds.
type RuleEngine struct {
	t Thresholds
}

// NewRuleEngine creates a RuleEngine.
func NewRuleEngine(t Thresholds) *RuleEngine {
	return &RuleEngine{t: t}
}

// Evaluate returns the insights for the report ordered by priority
// (1 is most urgent).
func (e *RuleEngine) Evaluate(r *analytics.Report) []Insight {
	var out []Insight
	g := r.GrowthComparison

	if r.Overview.TotalSales == 0 {
		out = append(out, Insight{
			Kind:     KindInfo,
			Title:    "No sales recorded",
			Message:  fmt.Sprintf("No sales were recorded in the last %d days. Record sales to unlock trend analysis.", r.Range.Days),
			Priority: 1,
		})
		return out
	}

	switch {
	case g.Previous.Revenue > 0 && g.RevenueGrowth <= -e.t.RevenueDropPercent:
		out = append(out, Insight{
			Kind:  KindWarning,
			Title: "Revenue dropped",
			Message: fmt.Sprintf(
				"Revenue fell %.1f%% versus the previous %d days (%s vs %s). Review pricing and promote your best sellers.",
				math.Abs(g.RevenueGrowth), r.Range.Days, money(g.Current.Revenue), money(g.Previous.Revenue),
			),
			Priority: 1,
		})
	case g.RevenueGrowth >= e.t.GrowthPercent:
		out = append(out, Insight{
			Kind:  KindSuccess,
			Title: "Revenue is growing",
			Message: fmt.Sprintf(
				"Revenue grew %.1f%% versus the previous %d days, reaching %s.",
				g.RevenueGrowth, r.Range.Days, money(g.Current.Revenue),
			),
			Priority: 3,
		})
	}

	if len(r.TopProducts) > 1 && r.TopProducts[0].RevenueSharePercent >= e.t.ConcentrationPercent {
		top := r.TopProducts[0]
		out = append(out, Insight{
			Kind:  KindWarning,
			Title: "Revenue is concentrated",
			Message: fmt.Sprintf(
				"%s generates %.1f%% of revenue. Diversifying sales would reduce dependence on a single product.",
				top.Name, top.RevenueSharePercent,
			),
			Priority: 2,
		})
	}

	if prev := g.Previous.AverageOrderValue; prev > 0 {
		decline := (prev - g.Current.AverageOrderValue) / prev * 100
		if decline >= e.t.AOVDeclinePercent {
			out = append(out, Insight{
				Kind:  KindRecommendation,
				Title: "Average order value is down",
				Message: fmt.Sprintf(
					"Average order value fell from %s to %s. Consider bundles or volume pricing to lift basket size.",
					money(prev), money(g.Current.AverageOrderValue),
				),
				Priority: 2,
			})
		}
	}

	if best := r.RevenueSummary.BestDay; best != nil && best.Revenue > 0 {
		out = append(out, Insight{
			Kind:     KindInfo,
			Title:    "Best day",
			Message:  fmt.Sprintf("Your best day was %s with %s from %d sales.", best.Date, money(best.Revenue), best.Sales),
			Priority: 4,
		})
	}

	sortByPriority(out)
	return out
}

// HealthScore rates the period from 0 to 100. Fifty is a flat period with
// steady activity.
func (e *RuleEngine) HealthScore(r *analytics.Report) int {
	if r.Overview.TotalSales == 0 {
		return 0
	}
	g := r.GrowthComparison
	score := 50.0

	score += clamp(g.RevenueGrowth, -25, 25)
	switch {
	case g.SalesGrowth > 0:
		score += 10
	case g.SalesGrowth < 0:
		score -= 10
	}

	if days := len(r.SalesTrendDaily); days > 0 {
		active := 0
		for _, p := range r.SalesTrendDaily {
			if p.Sales > 0 {
				active++
			}
		}
		score += 15 * float64(active) / float64(days)
	}

	if len(r.TopProducts) > 1 && r.TopProducts[0].RevenueSharePercent >= e.t.ConcentrationPercent {
		score -= 10
	}

	return int(math.Round(clamp(score, 0, 100)))
}

// Summary is the rule-based executive summary.
func (e *RuleEngine) Summary(r *analytics.Report) string {
	if r.Overview.TotalSales == 0 {
		return fmt.Sprintf("No sales were recorded in the last %d days.", r.Range.Days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Revenue of %s from %d sales over the last %d days", money(r.Overview.TotalRevenue), r.Overview.TotalSales, r.Range.Days)
	switch growth := r.GrowthComparison.RevenueGrowth; {
	case growth > 0:
		fmt.Fprintf(&b, ", up %.1f%% on the previous period.", growth)
	case growth < 0:
		fmt.Fprintf(&b, ", down %.1f%% on the previous period.", math.Abs(growth))
	default:
		b.WriteString(", flat against the previous period.")
	}
	if len(r.TopProducts) > 0 {
		fmt.Fprintf(&b, " %s is the top product.", r.TopProducts[0].Name)
	}
	return b.String()
}

func sortByPriority(in []Insight) {
	slices.SortStableFunc(in, func(a, b Insight) int { return cmp.Compare(a.Priority, b.Priority) })
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
