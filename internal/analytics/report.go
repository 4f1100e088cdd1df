// Package analytics turns raw sale records into the revenue report shown on
// the dashboard, and computes platform-wide statistics for administrators.
package analytics

import "bizpulse/internal/types"

// Report is the full analytics payload for one business and period.
type Report struct {
	Overview          Overview          `json:"overview"`
	SalesTrendDaily   []TrendPoint      `json:"salesTrendDaily"`
	SalesTrendMonthly []TrendPoint      `json:"salesTrendMonthly"`
	MonthlyComparison []MonthPoint      `json:"monthlyComparison"`
	TopProducts       []ProductRevenue  `json:"topProducts"`
	CategoryBreakdown []CategoryRevenue `json:"categoryBreakdown"`
	GrowthComparison  GrowthComparison  `json:"growthComparison"`
	RevenueSummary    RevenueSummary    `json:"revenueSummary"`
	Access            Access            `json:"access"`
	Range             Range             `json:"range"`
}

// Overview is the current-period headline. Growth is revenue growth.
type Overview struct {
	TotalRevenue float64 `json:"totalRevenue"`
	TotalSales   int     `json:"totalSales"`
	Growth       float64 `json:"growth"`
}

// TrendPoint is one bucket of a series. Daily keys are YYYY-MM-DD and
// monthly keys are YYYY-MM-01.
type TrendPoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Sales   int     `json:"sales"`
}

// MonthPoint restates a monthly bucket keyed YYYY-MM.
type MonthPoint struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Sales   int     `json:"sales"`
}

// ProductRevenue is a top-products entry.
type ProductRevenue struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Revenue             float64 `json:"revenue"`
	Quantity            int     `json:"quantity"`
	RevenueSharePercent float64 `json:"revenueSharePercent"`
}

// CategoryRevenue is a category-breakdown entry. Sales counts records.
type CategoryRevenue struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
	Sales    int     `json:"sales"`
}

// PeriodTotals summarizes one period.
type PeriodTotals struct {
	Revenue           float64 `json:"revenue"`
	Sales             int     `json:"sales"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

// GrowthComparison compares the period against the preceding one of equal length.
type GrowthComparison struct {
	Current       PeriodTotals `json:"current"`
	Previous      PeriodTotals `json:"previous"`
	RevenueGrowth float64      `json:"revenueGrowth"`
	SalesGrowth   float64      `json:"salesGrowth"`
}

// BestDay is the highest-revenue day.
type BestDay struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Sales   int     `json:"sales"`
}

// RevenueSummary holds derived period statistics. BestMonth is nil when the
// monthly series is empty.
type RevenueSummary struct {
	TotalRevenue         float64     `json:"totalRevenue"`
	TotalSales           int         `json:"totalSales"`
	AverageOrderValue    float64     `json:"averageOrderValue"`
	AverageRevenuePerDay float64     `json:"averageRevenuePerDay"`
	BestDay              *BestDay    `json:"bestDay"`
	BestMonth            *MonthPoint `json:"bestMonth"`
}

// Access tells the client what the caller's plan unlocked.
type Access struct {
	PlanName               string               `json:"planName"`
	AnalyticsLevel         types.AnalyticsLevel `json:"analyticsLevel"`
	MaxAnalyticsPeriodDays int                  `json:"maxAnalyticsPeriodDays"`
	CanViewMonthly         bool                 `json:"canViewMonthly"`
	CanUseAIInsights       bool                 `json:"canUseAIInsights"`
}

// Range is the effective window. RequestedDays may exceed Days when the
// plan clamps the lookback.
type Range struct {
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Days          int    `json:"days"`
	RequestedDays int    `json:"requestedDays"`
}
