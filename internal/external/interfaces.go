package external

import (
	"context"

	"bizpulse/internal/types"
)

// CheckoutProvider creates hosted checkout sessions with a payment provider.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// WebhookVerifier authenticates a provider webhook and extracts completed
// checkouts. It returns (nil, nil) for authentic events of other types.
type WebhookVerifier interface {
	ParseCheckoutCompletion(payload []byte, signatureHeader string) (*CheckoutCompletion, error)
}

// CheckoutRequest describes one plan purchase. Amount is the effective
// price for Cycle, already discounted.
type CheckoutRequest struct {
	UserID      string
	Email       string
	PlanID      string
	PlanName    string
	DisplayName string
	Cycle       types.BillingCycle
	Amount      float64
	Currency    string
}

// CheckoutSession is the hosted page the client is redirected to.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// CheckoutCompletion is a paid checkout reported by the provider webhook.
type CheckoutCompletion struct {
	SessionID     string
	TransactionID string
	UserID        string
	PlanID        string
	Cycle         types.BillingCycle
	Amount        float64
	Currency      string
	Paid          bool
}
