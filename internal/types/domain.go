package types

import (
	"encoding/json"
	"time"
)

// User is an account holder. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Business is the tenant boundary. Each user owns at most one.
type Business struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Product is a sellable item in a business catalog.
type Product struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

// Sale records a transaction. ProductName, Category and UnitPrice are
// snapshots taken when the sale was written, so later product edits or
// deletes do not rewrite history.
type Sale struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"-"`
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	Category     string    `json:"category"`
	Quantity     int       `json:"quantity"`
	UnitPrice    float64   `json:"unitPrice"`
	Total        float64   `json:"total"`
	CustomerName string    `json:"customerName,omitempty"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubscriptionPlan is the stored plan record. Handlers never expose it
// directly; it is normalized into a PlanShape and PlanPricing first.
type SubscriptionPlan struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	DisplayName     string          `json:"displayName"`
	Description     string          `json:"description"`
	PriceMonthly    float64         `json:"priceMonthly"`
	PriceYearly     float64         `json:"priceYearly"`
	DiscountActive  bool            `json:"discountActive"`
	DiscountPercent float64         `json:"discountPercent"`
	DiscountCode    string          `json:"discountCode"`
	DiscountEndsAt  *time.Time      `json:"discountEndsAt"`
	Features        json.RawMessage `json:"features"`
	IsActive        bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Subscription binds a user to a plan for a billing period.
type Subscription struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	PlanID       string             `json:"planId"`
	Status       SubscriptionStatus `json:"status"`
	BillingCycle BillingCycle       `json:"billingCycle"`
	StartDate    time.Time          `json:"startDate"`
	EndDate      *time.Time         `json:"endDate"`
	LastPayment  *PaymentRecord     `json:"lastPayment,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// PaymentRecord is the receipt of a single charge.
type PaymentRecord struct {
	ID             string        `json:"-"`
	SubscriptionID string        `json:"-"`
	UserID         string        `json:"-"`
	Provider       string        `json:"provider"`
	TransactionID  string        `json:"transactionId"`
	Status         PaymentStatus `json:"status"`
	Amount         float64       `json:"amount"`
	Currency       string        `json:"currency"`
	BillingCycle   BillingCycle  `json:"billingCycle"`
	PaidAt         time.Time     `json:"paidAt"`
}

// PasswordResetRequest is a pending password reset. Only the token hash is stored.
type PasswordResetRequest struct {
	ID        string
	UserID    string
	TokenHash string
	Status    PasswordResetStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// PlanShape is the normalized view of a stored plan.
type PlanShape struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description"`
	PriceMonthly float64  `json:"priceMonthly"`
	PriceYearly  float64  `json:"priceYearly"`
	Features     []string `json:"features"`
}

// PlanCapabilities are the feature gates derived from a plan name.
type PlanCapabilities struct {
	AnalyticsLevel         AnalyticsLevel `json:"analyticsLevel"`
	MaxAnalyticsPeriodDays int            `json:"maxAnalyticsPeriodDays"`
	AIInsightsEnabled      bool           `json:"aiInsightsEnabled"`
	ReportExportEnabled    bool           `json:"reportExportEnabled"`
}

// PlanDiscount is the sanitized discount of a plan.
type PlanDiscount struct {
	Active  bool    `json:"active"`
	Percent float64 `json:"percent"`
	Code    *string `json:"code"`
	EndsAt  *string `json:"endsAt"`
}

// PlanPricing is the base and effective price pair for both billing cycles.
type PlanPricing struct {
	BasePriceMonthly      float64      `json:"basePriceMonthly"`
	BasePriceYearly       float64      `json:"basePriceYearly"`
	EffectivePriceMonthly float64      `json:"priceMonthly"`
	EffectivePriceYearly  float64      `json:"priceYearly"`
	Discount              PlanDiscount `json:"discount"`
}

// PlanUpdate carries the admin-editable pricing fields of a plan.
type PlanUpdate struct {
	PriceMonthly    float64
	PriceYearly     float64
	DiscountActive  bool
	DiscountPercent float64
	DiscountCode    string
	DiscountEndsAt  *time.Time
}
