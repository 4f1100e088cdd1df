package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bizpulse/internal/types"
)

const (
	DefaultPeriodDays = 30
	MaxPeriodDays     = 365
	topProductsLimit  = 10

	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// SaleSource returns the sales of a business dated within [start, end].
// No ordering is required.
type SaleSource interface {
	ListSalesInRange(ctx context.Context, businessID string, start, end time.Time) ([]types.Sale, error)
}

// Aggregator computes analytics reports.
type Aggregator struct {
	source SaleSource
	clock  types.Clock
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source SaleSource, clock types.Clock) *Aggregator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Aggregator{source: source, clock: clock}
}

// ParsePeriodDays reads the ?period= query value. Missing, non-numeric and
// non-positive values mean 30; larger values, including ones that overflow
// an int, are capped at 365. Trailing
// garbage after a leading integer is ignored.
func ParsePeriodDays(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
		return MaxPeriodDays
	}
	if err != nil || n <= 0 {
		return DefaultPeriodDays
	}
	if n > MaxPeriodDays {
		return MaxPeriodDays
	}
	return n
}

// CalculateGrowth returns the percent change from previous to current,
// rounded to one decimal. A zero previous value yields 100 when current is
// positive and 0 otherwise.
func CalculateGrowth(current, previous float64) float64 {
	var g float64
	switch {
	case previous > 0:
		g = (current - previous) / previous * 100
	case current > 0:
		g = 100
	}
	return round1(g)
}

// Window returns the inclusive UTC range covering the last days calendar
// days, ending today at 23:59:59.999.
func Window(now time.Time, days int) (start, end time.Time) {
	now = now.UTC()
	y, m, d := now.Date()
	end = time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	start = time.Date(y, m, d-(days-1), 0, 0, 0, 0, time.UTC)
	return start, end
}

// Compute builds the report for businessID. requestedDays is clamped to the
// plan's lookback window; the monthly series is only built for full
// analytics. Access.PlanName (the display name) is left for the caller.
func (a *Aggregator) Compute(ctx context.Context, businessID string, requestedDays int, caps types.PlanCapabilities) (*Report, error) {
	if requestedDays <= 0 {
		requestedDays = DefaultPeriodDays
	}
	days := requestedDays
	if caps.MaxAnalyticsPeriodDays > 0 && days > caps.MaxAnalyticsPeriodDays {
		days = caps.MaxAnalyticsPeriodDays
	}
	canViewMonthly := caps.AnalyticsLevel == types.AnalyticsFull

	start, end := Window(a.clock.Now(), days)
	prevEnd := start.Add(-time.Millisecond)
	prevStart := start.AddDate(0, 0, -days)

	var current, previous []types.Sale
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = a.source.ListSalesInRange(gctx, businessID, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = a.source.ListSalesInRange(gctx, businessID, prevStart, prevEnd)
		return err
	})
	if err := g.Wait(); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load sales", err)
	}
	current = withinRange(current, start, end)
	previous = withinRange(previous, prevStart, prevEnd)

	daily := dailySeries(current, start, days)
	var monthly []TrendPoint
	if canViewMonthly {
		monthly = monthlySeries(current)
	} else {
		monthly = []TrendPoint{}
	}

	totalRevenue, totalSales := 0.0, 0
	for _, p := range daily {
		totalRevenue += p.Revenue
		totalSales += p.Sales
	}
	prevRevenue, prevSales := totals(previous)

	revenueGrowth := CalculateGrowth(totalRevenue, prevRevenue)
	salesGrowth := CalculateGrowth(float64(totalSales), float64(prevSales))

	report := &Report{
		Overview: Overview{
			TotalRevenue: totalRevenue,
			TotalSales:   totalSales,
			Growth:       revenueGrowth,
		},
		SalesTrendDaily:   daily,
		SalesTrendMonthly: monthly,
		MonthlyComparison: monthComparison(monthly),
		TopProducts:       topProducts(current, totalRevenue),
		CategoryBreakdown: categoryBreakdown(current),
		GrowthComparison: GrowthComparison{
			Current:       PeriodTotals{Revenue: totalRevenue, Sales: totalSales, AverageOrderValue: average(totalRevenue, totalSales)},
			Previous:      PeriodTotals{Revenue: prevRevenue, Sales: prevSales, AverageOrderValue: average(prevRevenue, prevSales)},
			RevenueGrowth: revenueGrowth,
			SalesGrowth:   salesGrowth,
		},
		RevenueSummary: RevenueSummary{
			TotalRevenue:         totalRevenue,
			TotalSales:           totalSales,
			AverageOrderValue:    average(totalRevenue, totalSales),
			AverageRevenuePerDay: totalRevenue / float64(days),
			BestDay:              bestDay(daily),
			BestMonth:            bestMonth(monthly),
		},
		Access: Access{
			AnalyticsLevel:         caps.AnalyticsLevel,
			MaxAnalyticsPeriodDays: caps.MaxAnalyticsPeriodDays,
			CanViewMonthly:         canViewMonthly,
			CanUseAIInsights:       caps.AIInsightsEnabled,
		},
		Range: Range{
			StartDate:     types.FormatTimestamp(start),
			EndDate:       types.FormatTimestamp(end),
			Days:          days,
			RequestedDays: requestedDays,
		},
	}
	return report, nil
}

func withinRange(sales []types.Sale, start, end time.Time) []types.Sale {
	out := sales[:0:0]
	for _, s := range sales {
		if s.Date.Before(start) || s.Date.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func dailySeries(sales []types.Sale, start time.Time, days int) []TrendPoint {
	series := make([]TrendPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format(dayLayout)
		series[i] = TrendPoint{Date: key}
		index[key] = i
	}
	for _, s := range sales {
		if i, ok := index[s.Date.UTC().Format(dayLayout)]; ok {
			series[i].Revenue += s.Total
			series[i].Sales++
		}
	}
	return series
}

// monthlySeries only contains months that have at least one sale.
func monthlySeries(sales []types.Sale) []TrendPoint {
	byMonth := make(map[string]*TrendPoint)
	for _, s := range sales {
		key := s.Date.UTC().Format(monthLayout) + "-01"
		p, ok := byMonth[key]
		if !ok {
			p = &TrendPoint{Date: key}
			byMonth[key] = p
		}
		p.Revenue += s.Total
		p.Sales++
	}
	out := make([]TrendPoint, 0, len(byMonth))
	for _, p := range byMonth {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func monthComparison(monthly []TrendPoint) []MonthPoint {
	out := make([]MonthPoint, 0, len(monthly))
	for _, p := range monthly {
		out = append(out, MonthPoint{Month: p.Date[:7], Revenue: p.Revenue, Sales: p.Sales})
	}
	return out
}

func topProducts(sales []types.Sale, totalRevenue float64) []ProductRevenue {
	byID := make(map[string]*ProductRevenue)
	for _, s := range sales {
		p, ok := byID[s.ProductID]
		if !ok {
			p = &ProductRevenue{ID: s.ProductID, Name: s.ProductName}
			byID[s.ProductID] = p
		}
		if p.Name == "" {
			p.Name = s.ProductName
		}
		p.Revenue += s.Total
		p.Quantity += s.Quantity
	}

	out := make([]ProductRevenue, 0, len(byID))
	for _, p := range byID {
		if p.Name == "" {
			p.Name = "Unknown"
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > topProductsLimit {
		out = out[:topProductsLimit]
	}
	for i := range out {
		if totalRevenue > 0 {
			out[i].RevenueSharePercent = out[i].Revenue / totalRevenue * 100
		}
	}
	return out
}

func categoryBreakdown(sales []types.Sale) []CategoryRevenue {
	byCategory := make(map[string]*CategoryRevenue)
	for _, s := range sales {
		name := s.Category
		if name == "" {
			name = types.UncategorizedLabel
		}
		c, ok := byCategory[name]
		if !ok {
			c = &CategoryRevenue{Category: name}
			byCategory[name] = c
		}
		c.Revenue += s.Total
		c.Sales++
	}
	out := make([]CategoryRevenue, 0, len(byCategory))
	for _, c := range byCategory {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// bestDay picks the first day holding the maximum revenue. An all-zero
// period reports its first day.
func bestDay(daily []TrendPoint) *BestDay {
	if len(daily) == 0 {
		return nil
	}
	best := daily[0]
	for _, p := range daily[1:] {
		if p.Revenue > best.Revenue {
			best = p
		}
	}
	return &BestDay{Date: best.Date, Revenue: best.Revenue, Sales: best.Sales}
}

func bestMonth(monthly []TrendPoint) *MonthPoint {
	if len(monthly) == 0 {
		return nil
	}
	best := monthly[0]
	for _, p := range monthly[1:] {
		if p.Revenue > best.Revenue {
			best = p
		}
	}
	return &MonthPoint{Month: best.Date[:7], Revenue: best.Revenue, Sales: best.Sales}
}

func totals(sales []types.Sale) (revenue float64, count int) {
	for _, s := range sales {
		revenue += s.Total
	}
	return revenue, len(sales)
}

func average(revenue float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return revenue / float64(count)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
