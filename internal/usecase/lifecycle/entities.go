package lifecycle

import (
	"time"

	"agri-advance/internal/domain/advance"

	"github.com/shopspring/decimal"
)

type QuoteInput struct {
	FarmerID string `json:"farmer_id"`
	OrderID  string `json:"order_id"`
	// RequestedAmount is optional; nil asks for the largest principal the order and limit allow.
	RequestedAmount *decimal.Decimal `json:"requested_amount,omitempty"`
}

type Quote struct {
	FarmerID         string          `json:"farmer_id"`
	OrderID          string          `json:"order_id"`
	Principal        decimal.Decimal `json:"principal"`
	Fee              decimal.Decimal `json:"fee"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	InterestAmount   decimal.Decimal `json:"interest_amount"`
	TotalRepayable   decimal.Decimal `json:"total_repayable"`
	RiskTier         string          `json:"risk_tier"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	TermDays         int             `json:"term_days"`
	DueDate          time.Time       `json:"due_date"`
	ReceivableAmount decimal.Decimal `json:"receivable_amount"`
}

type RequestInput struct {
	FarmerID        string           `json:"farmer_id"`
	OrderID         string           `json:"order_id"`
	RequestedAmount *decimal.Decimal `json:"requested_amount,omitempty"`
	ActorID         string           `json:"-"`
}

type TransitionInput struct {
	AdvanceID string
	Target    advance.Status
	ActorID   string
	Reason    string
	// DisbursementReference is the payment rail's reference, used on DISBURSED.
	DisbursementReference string
	// RecoveredAmount is used on DEFAULTED; nil means nothing was recovered.
	RecoveredAmount *decimal.Decimal
}

type RepaymentInput struct {
	AdvanceID string          `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	Source    string          `json:"source"`
	ActorID   string          `json:"-"`
}

type RepaymentResult struct {
	Repayment advance.Repayment `json:"repayment"`
	Advance   advance.Advance   `json:"advance"`
	// Replayed is set when the reference had already been applied and nothing changed.
	Replayed bool `json:"replayed"`
}

type DefaultInput struct {
	AdvanceID       string          `json:"-"`
	Reason          string          `json:"reason"`
	RecoveredAmount decimal.Decimal `json:"recovered_amount"`
	ActorID         string          `json:"-"`
}

type Outstanding struct {
	Fee       decimal.Decimal `json:"fee"`
	Interest  decimal.Decimal `json:"interest"`
	Principal decimal.Decimal `json:"principal"`
	Total     decimal.Decimal `json:"total"`
}

type Details struct {
	Advance     advance.Advance     `json:"advance"`
	Outstanding Outstanding         `json:"outstanding"`
	Repayments  []advance.Repayment `json:"repayments"`
}

// TierTerms overrides pricing for one risk tier. Zero fields fall back to the policy defaults.
type TierTerms struct {
	FeeRate  decimal.Decimal
	TermDays int
}

type Policy struct {
	FeeRate decimal.Decimal
	// DefaultRate is used when the gate does not price the advance.
	DefaultRate     decimal.Decimal
	TermDays        int
	MaxAdvanceRatio decimal.Decimal
	Tiers           map[string]TierTerms
}

func (p Policy) terms(tier string) (feeRate decimal.Decimal, termDays int) {
	feeRate, termDays = p.FeeRate, p.TermDays
	if t, ok := p.Tiers[tier]; ok {
		if t.FeeRate.IsPositive() {
			feeRate = t.FeeRate
		}
		if t.TermDays > 0 {
			termDays = t.TermDays
		}
	}
	return feeRate, termDays
}
