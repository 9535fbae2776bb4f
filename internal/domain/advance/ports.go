//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=advance

package advance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Eligibility is the credit oracle's answer for one farmer and order.
type Eligibility struct {
	Approved    bool            `json:"approved"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	RiskTier    string          `json:"risk_tier"`
	// Rate is the annual interest rate, e.g. 0.12.
	Rate   decimal.Decimal `json:"rate"`
	Reason string          `json:"reason,omitempty"`
}

type EligibilityGate interface {
	GetEligibility(ctx context.Context, farmerID string, requestedAmount decimal.Decimal, orderID string) (*Eligibility, error)
}

// Order statuses an advance may be drawn against.
const (
	OrderConfirmed = "CONFIRMED"
	OrderAccepted  = "ACCEPTED"
)

type Order struct {
	OrderID          string          `json:"order_id"`
	FarmerID         string          `json:"farmer_id"`
	Status           string          `json:"status"`
	ReceivableAmount decimal.Decimal `json:"receivable_amount"`
}

func (o *Order) AdvanceEligible() bool {
	return o.Status == OrderConfirmed || o.Status == OrderAccepted
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

// ProofRequest is the payload anchored on chain after a disbursement.
type ProofRequest struct {
	AdvanceID   string          `json:"advance_id"`
	FarmerID    string          `json:"farmer_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	DisbursedAt time.Time       `json:"disbursed_at"`
}

type ProofResult struct {
	Status    VerificationStatus `json:"status"`
	ProofHash string             `json:"proof_hash"`
	TxRef     string             `json:"tx_ref"`
}

type ProofRecorder interface {
	RecordDisbursement(ctx context.Context, req ProofRequest) (*ProofResult, error)
}

// ProofQueue accepts proof work without blocking. Enqueue reports false when the job was dropped.
type ProofQueue interface {
	Enqueue(req ProofRequest) bool
}

// Event is a lifecycle notification emitted after a transition commits.
type Event struct {
	EventID    string          `json:"event_id"`
	AdvanceID  string          `json:"advance_id"`
	FarmerID   string          `json:"farmer_id"`
	Status     Status          `json:"new_status"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
