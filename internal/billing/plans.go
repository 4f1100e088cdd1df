// Package billing normalizes stored subscription plans into the shapes the
// API exposes: plan identity, feature gates, discount pricing and payments.
package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"bizpulse/internal/types"
)

// CapabilityRegistry maps a normalized plan name to its feature gates.
type CapabilityRegistry interface {
	// CapabilitiesFor returns the gates for the given plan name. Unknown
	// names receive the Free gates.
	CapabilitiesFor(name types.PlanName) types.PlanCapabilities
}

type staticCapabilityRegistry struct {
	caps map[types.PlanName]types.PlanCapabilities
}

//	| Plan     | Analytics | Max days | AI insights | Export |
//	|----------|-----------|----------|-------------|--------|
//	| Free     | limited   | 30       | no          | no     |
//	| Pro      | full      | 365      | no          | no     |
//	| Business | full      | 365      | yes         | no     |
var capabilityDefaults = map[types.PlanName]types.PlanCapabilities{
	types.PlanFree: {
		AnalyticsLevel:         types.AnalyticsLimited,
		MaxAnalyticsPeriodDays: 30,
	},
	types.PlanPro: {
		AnalyticsLevel:         types.AnalyticsFull,
		MaxAnalyticsPeriodDays: 365,
	},
	types.PlanBusiness: {
		AnalyticsLevel:         types.AnalyticsFull,
		MaxAnalyticsPeriodDays: 365,
		AIInsightsEnabled:      true,
	},
}

var freeCapabilities = capabilityDefaults[types.PlanFree]

// NewStaticCapabilityRegistry returns the built-in capability table.
func NewStaticCapabilityRegistry() CapabilityRegistry {
	m := make(map[types.PlanName]types.PlanCapabilities, len(capabilityDefaults))
	for k, v := range capabilityDefaults {
		m[k] = v
	}
	return &staticCapabilityRegistry{caps: m}
}

func (r *staticCapabilityRegistry) CapabilitiesFor(name types.PlanName) types.PlanCapabilities {
	if caps, ok := r.caps[name]; ok {
		return caps
	}
	return freeCapabilities
}

var defaultRegistry = NewStaticCapabilityRegistry()

// CapabilitiesFor returns the feature gates of a normalized plan.
func CapabilitiesFor(shape types.PlanShape) types.PlanCapabilities {
	return defaultRegistry.CapabilitiesFor(types.PlanName(shape.Name))
}

var (
	freeFeatures = []string{
		"Limited analytics (up to 30 days)",
		"Revenue overview",
		"Basic performance charts",
		"Top products",
	}
	proFeatures = []string{
		"Full analytics (daily and monthly)",
		"Revenue summaries and growth comparison",
		"Advanced sales trend analysis",
		"Top-performing products insights",
	}
	businessFeatures = []string{
		"Everything in Pro",
		"AI-generated insights",
		"Revenue drop and pricing recommendations",
		"Executive performance summaries",
	}
)

// NormalizePlanName lower-cases the stored name. A missing plan or empty
// name is the free tier.
func NormalizePlanName(plan *types.SubscriptionPlan) string {
	if plan == nil || plan.Name == "" {
		return string(types.PlanFree)
	}
	return strings.ToLower(plan.Name)
}

// ResolvePlanShape normalizes a stored plan. A nil plan resolves to Free.
func ResolvePlanShape(plan *types.SubscriptionPlan) types.PlanShape {
	name := NormalizePlanName(plan)

	var displayName, description string
	switch types.PlanName(name) {
	case types.PlanBusiness:
		displayName, description = "Business", "Business plan with AI insights and advanced recommendations"
	case types.PlanPro:
		displayName, description = "Pro", "Pro plan with full analytics"
	default:
		displayName, description = "Free", "Free plan with limited analytics"
	}

	shape := types.PlanShape{
		Name:        name,
		DisplayName: displayName,
		Description: description,
		Features:    featuresFor(name, plan),
	}
	if plan == nil {
		return shape
	}
	shape.ID = plan.ID
	if plan.DisplayName != "" {
		shape.DisplayName = plan.DisplayName
	}
	if plan.Description != "" {
		shape.Description = plan.Description
	}
	shape.PriceMonthly = plan.PriceMonthly
	shape.PriceYearly = plan.PriceYearly
	return shape
}

func featuresFor(name string, plan *types.SubscriptionPlan) []string {
	switch types.PlanName(name) {
	case types.PlanBusiness:
		return cloneStrings(businessFeatures)
	case types.PlanPro:
		return cloneStrings(proFeatures)
	case types.PlanFree:
		return cloneStrings(freeFeatures)
	}
	if plan != nil {
		if parsed := parseFeatures(plan.Features); len(parsed) > 0 {
			return parsed
		}
	}
	return cloneStrings(freeFeatures)
}

// parseFeatures accepts a JSON array, or a JSON string whose content is a
// JSON array. Anything else yields nil.
func parseFeatures(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil
		}
		if err := json.Unmarshal([]byte(encoded), &items); err != nil {
			return nil
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringify(item))
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
