package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizpulse/internal/analytics"
	"bizpulse/internal/types"
)

func sqlContaining(fragment string) any {
	return mock.MatchedBy(func(sql string) bool { return strings.Contains(sql, fragment) })
}

func TestStatsRepository_LoadPlatformInput(t *testing.T) {
	db := new(mockDBTX)
	repo := NewStatsRepository(db)

	db.On("QueryRow", mock.Anything, sqlContaining("FROM users"), mock.Anything).Return(valuesRow(5, 1, 4))
	db.On("QueryRow", mock.Anything, sqlContaining("FROM businesses"), mock.Anything).Return(valuesRow(4))
	db.On("QueryRow", mock.Anything, sqlContaining("FROM products"), mock.Anything).Return(valuesRow(12))
	db.On("QueryRow", mock.Anything, sqlContaining("FROM sales"), mock.Anything).Return(valuesRow(30, 1250.5))
	db.On("QueryRow", mock.Anything, sqlContaining("FROM subscriptions WHERE"), mock.Anything).Return(valuesRow(3))
	db.On("Query", mock.Anything, sqlContaining("JOIN subscription_plans"), mock.Anything).Return(newMockRows(
		[]any{testNow, "pro", "Pro", 19.0},
		[]any{testNow, "business", "Business", 49.0},
	), nil)

	in, err := repo.LoadPlatformInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, in.TotalUsers)
	assert.Equal(t, 1, in.AdminUsers)
	assert.Equal(t, 4, in.BusinessOwners)
	assert.Equal(t, 4, in.TotalBusinesses)
	assert.Equal(t, 12, in.TotalProducts)
	assert.Equal(t, 30, in.TotalSalesRecords)
	assert.Equal(t, 1250.5, in.TotalSalesRevenue)
	assert.Equal(t, 3, in.ActiveSubscriptionCount)
	assert.Equal(t, []analytics.ActiveSubscription{
		{StartDate: testNow, PlanName: "pro", PlanDisplayName: "Pro", PlanPriceMonthly: 19},
		{StartDate: testNow, PlanName: "business", PlanDisplayName: "Business", PlanPriceMonthly: 49},
	}, in.ActiveSubscriptions)
}

func TestStatsRepository_LoadPlatformInput_Error(t *testing.T) {
	db := new(mockDBTX)
	repo := NewStatsRepository(db)

	db.On("QueryRow", mock.Anything, sqlContaining("FROM products"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("timeout")})
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).Return(valuesRow(0)).Maybe()
	db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(newMockRows(), nil).Maybe()

	_, err := repo.LoadPlatformInput(context.Background())
	requireAppErrorCode(t, err, types.ErrCodeInternalDB)
}
