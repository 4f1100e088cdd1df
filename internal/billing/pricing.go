package billing

import (
	"math"

	"bizpulse/internal/types"
)

// DiscountFor sanitizes a plan's stored discount. The percent is clamped to
// [0, 100] and the discount only counts as active when the flag is set and
// the percent is positive. EndsAt is informational and never deactivates it.
func DiscountFor(plan *types.SubscriptionPlan) types.PlanDiscount {
	if plan == nil {
		return types.PlanDiscount{}
	}
	percent := clampPercent(plan.DiscountPercent)
	d := types.PlanDiscount{
		Active:  plan.DiscountActive && percent > 0,
		Percent: percent,
	}
	if plan.DiscountCode != "" {
		code := plan.DiscountCode
		d.Code = &code
	}
	if plan.DiscountEndsAt != nil {
		s := types.FormatTimestamp(*plan.DiscountEndsAt)
		d.EndsAt = &s
	}
	return d
}

// DiscountedPrice applies an active discount to base, rounded to cents.
// Negative bases are floored at zero.
func DiscountedPrice(base float64, d types.PlanDiscount) float64 {
	if base < 0 || math.IsNaN(base) {
		base = 0
	}
	if !d.Active {
		return base
	}
	return Round2(base * (1 - d.Percent/100))
}

// PricingFor returns base and effective prices for both billing cycles.
func PricingFor(plan *types.SubscriptionPlan) types.PlanPricing {
	d := DiscountFor(plan)
	var monthly, yearly float64
	if plan != nil {
		monthly, yearly = plan.PriceMonthly, plan.PriceYearly
	}
	return types.PlanPricing{
		BasePriceMonthly:      monthly,
		BasePriceYearly:       yearly,
		EffectivePriceMonthly: DiscountedPrice(monthly, d),
		EffectivePriceYearly:  DiscountedPrice(yearly, d),
		Discount:              d,
	}
}

// PriceForCycle returns the effective price charged for one billing cycle.
func PriceForCycle(plan *types.SubscriptionPlan, cycle types.BillingCycle) float64 {
	p := PricingFor(plan)
	if cycle == types.BillingYearly {
		return p.EffectivePriceYearly
	}
	return p.EffectivePriceMonthly
}

// BasePriceForCycle returns the undiscounted price for one billing cycle.
func BasePriceForCycle(plan *types.SubscriptionPlan, cycle types.BillingCycle) float64 {
	if plan == nil {
		return 0
	}
	if cycle == types.BillingYearly {
		return plan.PriceYearly
	}
	return plan.PriceMonthly
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampPercent(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
