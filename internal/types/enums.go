package types

// Role is the authorization level of a user account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// SubscriptionStatus represents the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// BillingCycle selects which plan price applies.
type BillingCycle string

const (
	BillingMonthly BillingCycle = "monthly"
	BillingYearly  BillingCycle = "yearly"
)

// ParseBillingCycle normalizes client input. Anything other than exactly
// "yearly" is treated as monthly.
func ParseBillingCycle(s string) BillingCycle {
	if BillingCycle(s) == BillingYearly {
		return BillingYearly
	}
	return BillingMonthly
}

// Days returns the subscription length granted by one payment in this cycle.
func (c BillingCycle) Days() int {
	if c == BillingYearly {
		return 365
	}
	return 30
}

// AnalyticsLevel controls how much of the analytics report a plan can see.
type AnalyticsLevel string

const (
	AnalyticsLimited AnalyticsLevel = "limited"
	AnalyticsFull    AnalyticsLevel = "full"
)

// PlanName identifies the built-in tiers. Stored plans may carry other names.
type PlanName string

const (
	PlanFree     PlanName = "free"
	PlanPro      PlanName = "pro"
	PlanBusiness PlanName = "business"
)

// PaymentStatus is the outcome recorded for a payment.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PasswordResetStatus tracks whether a reset token has been consumed.
type PasswordResetStatus string

const (
	PasswordResetPending PasswordResetStatus = "pending"
	PasswordResetUsed    PasswordResetStatus = "used"
)

const (
	// DefaultCategory is assigned to products created without a category.
	DefaultCategory = "General"
	// UncategorizedLabel groups sales whose category snapshot is empty.
	UncategorizedLabel = "Uncategorized"
	// DefaultCurrency is the only currency the platform charges in.
	DefaultCurrency = "USD"
)
