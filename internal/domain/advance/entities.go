package advance

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusDisbursed Status = "DISBURSED"
	StatusRepaid    Status = "REPAID"
	StatusDefaulted Status = "DEFAULTED"
)

// VerificationStatus mirrors the proof recorder's answer for a disbursement.
type VerificationStatus string

const (
	VerificationNone        VerificationStatus = ""
	VerificationConfirmed   VerificationStatus = "CONFIRMED"
	VerificationPending     VerificationStatus = "PENDING"
	VerificationUnavailable VerificationStatus = "UNAVAILABLE"
)

type Advance struct {
	ID                    uint64             `gorm:"primaryKey;column:id" json:"-"`
	AdvanceID             string             `gorm:"column:advance_id;size:32;uniqueIndex:ux_advances_advance_id" json:"advance_id"`
	FarmerID              string             `gorm:"column:farmer_id;size:64;index:idx_advances_farmer" json:"farmer_id"`
	OrderID               string             `gorm:"column:order_id;size:64;index:idx_advances_order" json:"order_id"`
	PoolID                string             `gorm:"column:pool_id;size:32" json:"pool_id"`
	ReservationID         string             `gorm:"column:reservation_id;size:32" json:"reservation_id"`
	RiskTier              string             `gorm:"column:risk_tier;size:16" json:"risk_tier"`
	PrincipalAmount       decimal.Decimal    `gorm:"column:principal_amount;type:decimal(20,2)" json:"principal_amount"`
	FeeAmount             decimal.Decimal    `gorm:"column:fee_amount;type:decimal(20,2)" json:"fee_amount"`
	InterestRate          decimal.Decimal    `gorm:"column:interest_rate;type:decimal(8,6)" json:"interest_rate"`
	InterestAmount        decimal.Decimal    `gorm:"column:interest_amount;type:decimal(20,2)" json:"interest_amount"`
	TotalRepayable        decimal.Decimal    `gorm:"column:total_repayable;type:decimal(20,2)" json:"total_repayable"`
	DisbursedAmount       decimal.Decimal    `gorm:"column:disbursed_amount;type:decimal(20,2)" json:"disbursed_amount"`
	RepaidAmount          decimal.Decimal    `gorm:"column:repaid_amount;type:decimal(20,2)" json:"repaid_amount"`
	FeePaid               decimal.Decimal    `gorm:"column:fee_paid;type:decimal(20,2)" json:"fee_paid"`
	InterestPaid          decimal.Decimal    `gorm:"column:interest_paid;type:decimal(20,2)" json:"interest_paid"`
	PrincipalPaid         decimal.Decimal    `gorm:"column:principal_paid;type:decimal(20,2)" json:"principal_paid"`
	RecoveredAmount       decimal.Decimal    `gorm:"column:recovered_amount;type:decimal(20,2)" json:"recovered_amount"`
	LossAmount            decimal.Decimal    `gorm:"column:loss_amount;type:decimal(20,2)" json:"loss_amount"`
	Status                Status             `gorm:"column:status;size:16;index:idx_advances_farmer" json:"status"`
	DisbursementReference string             `gorm:"column:disbursement_reference;size:64" json:"disbursement_reference,omitempty"`
	VerificationStatus    VerificationStatus `gorm:"column:verification_status;size:16" json:"verification_status,omitempty"`
	VerificationPending   bool               `gorm:"column:verification_pending;index" json:"verification_pending"`
	ProofHash             string             `gorm:"column:proof_hash;size:128" json:"proof_hash,omitempty"`
	ProofTxRef            string             `gorm:"column:proof_tx_ref;size:128" json:"proof_tx_ref,omitempty"`
	DueDate               time.Time          `gorm:"column:due_date" json:"due_date"`
	ApprovedAt            *time.Time         `gorm:"column:approved_at" json:"approved_at,omitempty"`
	RejectedAt            *time.Time         `gorm:"column:rejected_at" json:"rejected_at,omitempty"`
	DisbursedAt           *time.Time         `gorm:"column:disbursed_at" json:"disbursed_at,omitempty"`
	RepaidAt              *time.Time         `gorm:"column:repaid_at" json:"repaid_at,omitempty"`
	DefaultedAt           *time.Time         `gorm:"column:defaulted_at" json:"defaulted_at,omitempty"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Advance) TableName() string { return "advances" }

// Outstanding splits what is still owed into its fee, interest and principal parts.
func (a *Advance) Outstanding() (fee, interest, principal decimal.Decimal) {
	return a.FeeAmount.Sub(a.FeePaid), a.InterestAmount.Sub(a.InterestPaid), a.PrincipalAmount.Sub(a.PrincipalPaid)
}

func (a *Advance) OutstandingTotal() decimal.Decimal {
	return a.TotalRepayable.Sub(a.RepaidAmount)
}

// StatusHistory is append-only; one row per transition.
type StatusHistory struct {
	ID         uint64    `gorm:"primaryKey;column:id" json:"-"`
	AdvanceID  string    `gorm:"column:advance_id;size:32;index:idx_history_advance" json:"advance_id"`
	FromStatus Status    `gorm:"column:from_status;size:16" json:"from_status"`
	ToStatus   Status    `gorm:"column:to_status;size:16" json:"to_status"`
	ActorID    string    `gorm:"column:actor_id;size:64" json:"actor_id"`
	Reason     string    `gorm:"column:reason;type:text" json:"reason,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"timestamp"`
}

func (StatusHistory) TableName() string { return "advance_status_history" }

type Repayment struct {
	ID                 uint64          `gorm:"primaryKey;column:id" json:"-"`
	RepaymentID        string          `gorm:"column:repayment_id;size:32;uniqueIndex" json:"repayment_id"`
	AdvanceID          string          `gorm:"column:advance_id;size:32;uniqueIndex:ux_repayments_reference" json:"advance_id"`
	Amount             decimal.Decimal `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	Method             string          `gorm:"column:method;size:32" json:"method"`
	Reference          string          `gorm:"column:reference;size:64;uniqueIndex:ux_repayments_reference" json:"reference"`
	Source             string          `gorm:"column:source;size:64" json:"source"`
	AppliedToFee       decimal.Decimal `gorm:"column:applied_to_fee;type:decimal(20,2)" json:"applied_to_fee"`
	AppliedToInterest  decimal.Decimal `gorm:"column:applied_to_interest;type:decimal(20,2)" json:"applied_to_interest"`
	AppliedToPrincipal decimal.Decimal `gorm:"column:applied_to_principal;type:decimal(20,2)" json:"applied_to_principal"`
	CreatedAt          time.Time       `gorm:"column:created_at" json:"created_at"`
}

func (Repayment) TableName() string { return "repayments" }
