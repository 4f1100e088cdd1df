package billing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/types"
)

func TestDiscountFor(t *testing.T) {
	ends := time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name        string
		plan        *types.SubscriptionPlan
		wantActive  bool
		wantPercent float64
		wantCode    *string
		wantEndsAt  *string
	}{
		{"nil plan", nil, false, 0, nil, nil},
		{"flag without percent", &types.SubscriptionPlan{DiscountActive: true}, false, 0, nil, nil},
		{"percent without flag", &types.SubscriptionPlan{DiscountPercent: 20}, false, 20, nil, nil},
		{"active", &types.SubscriptionPlan{DiscountActive: true, DiscountPercent: 20}, true, 20, nil, nil},
		{"clamped high", &types.SubscriptionPlan{DiscountActive: true, DiscountPercent: 150}, true, 100, nil, nil},
		{"clamped low", &types.SubscriptionPlan{DiscountActive: true, DiscountPercent: -5}, false, 0, nil, nil},
		{"NaN", &types.SubscriptionPlan{DiscountActive: true, DiscountPercent: math.NaN()}, false, 0, nil, nil},
		{
			"code and end date",
			&types.SubscriptionPlan{DiscountActive: true, DiscountPercent: 10, DiscountCode: "LAUNCH", DiscountEndsAt: &ends},
			true, 10, strPtr("LAUNCH"), strPtr("2025-12-31T23:59:00.000Z"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiscountFor(tt.plan)
			assert.Equal(t, tt.wantActive, d.Active)
			assert.Equal(t, tt.wantPercent, d.Percent)
			assert.Equal(t, tt.wantCode, d.Code)
			assert.Equal(t, tt.wantEndsAt, d.EndsAt)
		})
	}
}

func TestDiscountedPrice(t *testing.T) {
	active := func(p float64) types.PlanDiscount { return types.PlanDiscount{Active: true, Percent: p} }

	tests := []struct {
		name string
		base float64
		d    types.PlanDiscount
		want float64
	}{
		{"inactive keeps base", 19.99, types.PlanDiscount{Percent: 50}, 19.99},
		{"twenty percent", 49, active(20), 39.2},
		{"rounds to cents", 19.99, active(15), 16.99},
		{"full discount", 49, active(100), 0},
		{"negative base floored", -10, active(20), 0},
		{"negative base inactive", -10, types.PlanDiscount{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DiscountedPrice(tt.base, tt.d), 1e-9)
		})
	}
}

func TestDiscountedPrice_MatchesFormula(t *testing.T) {
	for _, base := range []float64{0, 1, 9.99, 19, 49.5, 490} {
		for _, p := range []float64{1, 12.5, 33, 99} {
			d := types.PlanDiscount{Active: true, Percent: p}
			want := math.Round(base*(1-p/100)*100) / 100
			require.InDelta(t, want, DiscountedPrice(base, d), 1e-9, "base=%v p=%v", base, p)
		}
	}
}

func TestPricingFor_AndPriceForCycle(t *testing.T) {
	plan := &types.SubscriptionPlan{
		Name: "pro", PriceMonthly: 20, PriceYearly: 200,
		DiscountActive: true, DiscountPercent: 25,
	}

	p := PricingFor(plan)
	assert.Equal(t, 20.0, p.BasePriceMonthly)
	assert.Equal(t, 200.0, p.BasePriceYearly)
	assert.Equal(t, 15.0, p.EffectivePriceMonthly)
	assert.Equal(t, 150.0, p.EffectivePriceYearly)
	assert.True(t, p.Discount.Active)

	assert.Equal(t, 150.0, PriceForCycle(plan, types.BillingYearly))
	assert.Equal(t, 15.0, PriceForCycle(plan, types.BillingMonthly))
	assert.Equal(t, 15.0, PriceForCycle(plan, types.ParseBillingCycle("annual")))
	assert.Equal(t, 200.0, BasePriceForCycle(plan, types.BillingYearly))
	assert.Equal(t, 0.0, BasePriceForCycle(nil, types.BillingYearly))

	empty := PricingFor(nil)
	assert.Equal(t, 0.0, empty.EffectivePriceMonthly)
	assert.False(t, empty.Discount.Active)
}

func strPtr(s string) *string { return &s }
