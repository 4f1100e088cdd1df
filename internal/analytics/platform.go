package analytics

import (
	"sort"
	"time"

	"bizpulse/internal/types"
)

const revenueByMonthLimit = 6

// ActiveSubscription pairs an active subscription with its plan's base
// monthly price, as loaded for platform statistics. Subscriptions whose
// plan no longer exists are not listed.
type ActiveSubscription struct {
	StartDate        time.Time
	PlanName         string
	PlanDisplayName  string
	PlanPriceMonthly float64
}

// PlatformInput is the raw material for PlatformStats. The store layer
// fills it; computing the statistics needs no I/O.
type PlatformInput struct {
	TotalUsers              int
	AdminUsers              int
	BusinessOwners          int
	ActiveSubscriptionCount int
	TotalBusinesses         int
	TotalProducts           int
	TotalSalesRecords       int
	TotalSalesRevenue       float64
	ActiveSubscriptions     []ActiveSubscription
}

// PlatformStats are the headline numbers of the admin dashboard.
type PlatformStats struct {
	Stats            Stats           `json:"stats"`
	RevenueByMonth   []MonthRevenue  `json:"revenueByMonth"`
	PlanDistribution []PlanCount     `json:"planDistribution"`
	SystemAnalytics  SystemAnalytics `json:"systemAnalytics"`
}

// Stats are platform totals. TotalRevenue is recurring plus sales revenue.
type Stats struct {
	TotalUsers              int     `json:"totalUsers"`
	TotalRevenue            float64 `json:"totalRevenue"`
	MonthlyRecurringRevenue float64 `json:"monthlyRecurringRevenue"`
	TotalSalesRevenue       float64 `json:"totalSalesRevenue"`
	ActiveSubscriptions     int     `json:"activeSubscriptions"`
	RevenueGrowth           float64 `json:"revenueGrowth"`
	AdminUsers              int     `json:"adminUsers"`
	BusinessOwners          int     `json:"businessOwners"`
}

// MonthRevenue is recurring revenue attributed to the month a subscription started.
type MonthRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// PlanCount is the number of active subscriptions on one plan.
type PlanCount struct {
	PlanName string `json:"planName"`
	Count    int    `json:"count"`
}

// SystemAnalytics are platform usage ratios.
type SystemAnalytics struct {
	TotalBusinesses         int     `json:"totalBusinesses"`
	TotalProducts           int     `json:"totalProducts"`
	TotalSalesRecords       int     `json:"totalSalesRecords"`
	AverageRevenuePerUser   float64 `json:"averageRevenuePerUser"`
	SubscriptionPenetration float64 `json:"subscriptionPenetration"`
}

// ComputePlatformStats derives the admin dashboard numbers. Revenue growth
// is not tracked and always reports 0.
func ComputePlatformStats(in PlatformInput) PlatformStats {
	mrr := 0.0
	byMonth := make(map[string]float64)
	byPlan := make(map[string]int)
	planOrder := make([]string, 0)

	for _, s := range in.ActiveSubscriptions {
		mrr += s.PlanPriceMonthly
		byMonth[s.StartDate.UTC().Format(monthLayout)] += s.PlanPriceMonthly

		name := s.PlanDisplayName
		if name == "" {
			name = s.PlanName
		}
		if name == "" {
			name = "Unknown"
		}
		if _, seen := byPlan[name]; !seen {
			planOrder = append(planOrder, name)
		}
		byPlan[name]++
	}

	months := make([]MonthRevenue, 0, len(byMonth))
	for m, r := range byMonth {
		months = append(months, MonthRevenue{Month: m, Revenue: r})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month > months[j].Month })
	if len(months) > revenueByMonthLimit {
		months = months[:revenueByMonthLimit]
	}

	plans := make([]PlanCount, 0, len(planOrder))
	for _, name := range planOrder {
		plans = append(plans, PlanCount{PlanName: name, Count: byPlan[name]})
	}

	platformRevenue := mrr + in.TotalSalesRevenue
	active := in.ActiveSubscriptionCount

	var arpu, penetration float64
	if in.TotalUsers > 0 {
		arpu = platformRevenue / float64(in.TotalUsers)
		penetration = round1(float64(active) / float64(in.TotalUsers) * 100)
	}

	return PlatformStats{
		Stats: Stats{
			TotalUsers:              in.TotalUsers,
			TotalRevenue:            platformRevenue,
			MonthlyRecurringRevenue: mrr,
			TotalSalesRevenue:       in.TotalSalesRevenue,
			ActiveSubscriptions:     active,
			AdminUsers:              in.AdminUsers,
			BusinessOwners:          in.BusinessOwners,
		},
		RevenueByMonth:   months,
		PlanDistribution: plans,
		SystemAnalytics: SystemAnalytics{
			TotalBusinesses:         in.TotalBusinesses,
			TotalProducts:           in.TotalProducts,
			TotalSalesRecords:       in.TotalSalesRecords,
			AverageRevenuePerUser:   arpu,
			SubscriptionPenetration: penetration,
		},
	}
}

// RoleCount is the number of users holding one role.
type RoleCount struct {
	Role  types.Role `json:"role"`
	Count int        `json:"count"`
}
