package billing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	plans, err := DefaultCatalog()
	require.NoError(t, err)
	require.Len(t, plans, 3)

	want := []struct {
		id      string
		name    string
		monthly float64
		yearly  float64
	}{
		{"plan_free", "free", 0, 0},
		{"plan_pro", "pro", 19, 190},
		{"plan_business", "business", 49, 490},
	}
	for i, w := range want {
		assert.Equal(t, w.id, plans[i].ID)
		assert.Equal(t, w.name, plans[i].Name)
		assert.Equal(t, w.monthly, plans[i].PriceMonthly)
		assert.Equal(t, w.yearly, plans[i].PriceYearly)
		assert.True(t, plans[i].IsActive)
		assert.False(t, plans[i].DiscountActive)
	}

	var features []string
	require.NoError(t, json.Unmarshal(plans[2].Features, &features))
	assert.Contains(t, features, "AI-generated insights")
}

func TestParseCatalog_Discount(t *testing.T) {
	doc := `
plans:
  - name: " Pro "
    priceMonthly: 19.999
    priceYearly: 190
    discount:
      percent: 10
      code: " SPRING "
      endsAt: "2025-06-01"
  - name: legacy
    active: false
`
	plans, err := ParseCatalog(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, plans, 2)

	pro := plans[0]
	assert.Equal(t, "pro", pro.Name)
	assert.Equal(t, "Pro", pro.DisplayName)
	assert.Equal(t, 20.0, pro.PriceMonthly)
	assert.True(t, pro.DiscountActive)
	assert.Equal(t, 10.0, pro.DiscountPercent)
	assert.Equal(t, "SPRING", pro.DiscountCode)
	require.NotNil(t, pro.DiscountEndsAt)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *pro.DiscountEndsAt)

	legacy := plans[1]
	assert.False(t, legacy.IsActive)
	assert.JSONEq(t, `[]`, string(legacy.Features))
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty"},
		{"no plans", `plans: []`, "no plans"},
		{"missing name", "plans:\n  - priceMonthly: 5\n", "name is required"},
		{"negative price", "plans:\n  - name: pro\n    priceMonthly: -1\n", "negative"},
		{"duplicate", "plans:\n  - name: pro\n  - name: PRO\n", "duplicate"},
		{"discount too high", "plans:\n  - name: pro\n    discount:\n      percent: 120\n", "between 0 and 100"},
		{"bad end date", "plans:\n  - name: pro\n    discount:\n      percent: 5\n      endsAt: \"soon\"\n", "invalid date"},
		{"unknown field", "plans:\n  - name: pro\n    price: 5\n", "decode catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
