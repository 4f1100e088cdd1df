package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bizpulse/internal/types"
)

// SimulatorProviderName is recorded on payments taken by the simulator.
const SimulatorProviderName = "Hardcoded-Payment-Simulator"

// ChargeRequest describes one charge for one billing cycle of a plan.
type ChargeRequest struct {
	UserID       string
	PlanID       string
	Amount       float64
	BillingCycle types.BillingCycle
}

// PaymentProvider takes a payment and returns its receipt.
type PaymentProvider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*types.PaymentRecord, error)
}

// Simulator is a PaymentProvider that always succeeds without contacting
// any processor.
type Simulator struct {
	clock types.Clock
}

// NewSimulator creates a simulator stamping receipts with clock.
func NewSimulator(clock types.Clock) *Simulator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Simulator{clock: clock}
}

func (s *Simulator) Name() string { return SimulatorProviderName }

// Charge returns a succeeded receipt with a transaction id of the form
// mock_txn_<unix millis>_<8 hex chars>.
func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (*types.PaymentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return &types.PaymentRecord{
		UserID:        req.UserID,
		Provider:      SimulatorProviderName,
		TransactionID: fmt.Sprintf("mock_txn_%d_%s", now.UnixMilli(), suffix),
		Status:        types.PaymentSucceeded,
		Amount:        Round2(req.Amount),
		Currency:      types.DefaultCurrency,
		BillingCycle:  req.BillingCycle,
		PaidAt:        now,
	}, nil
}
