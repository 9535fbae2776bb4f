package advance

import "context"

type Repository interface {
	Create(ctx context.Context, a *Advance) error
	Save(ctx context.Context, a *Advance) error
	GetByAdvanceID(ctx context.Context, advanceID string) (*Advance, error)
	// GetByAdvanceIDForUpdate locks the row for the rest of the transaction.
	GetByAdvanceIDForUpdate(ctx context.Context, advanceID string) (*Advance, error)
	// GetOpenByOrderID returns the non-terminal advance drawn against an order, if any.
	GetOpenByOrderID(ctx context.Context, orderID string) (*Advance, error)
	ListByFarmerID(ctx context.Context, farmerID string, status Status) ([]Advance, error)
	ListPendingVerification(ctx context.Context, limit int) ([]Advance, error)
	UpdateVerification(ctx context.Context, advanceID string, status VerificationStatus, pending bool, proofHash, txRef string) error
}

type HistoryRepository interface {
	Append(ctx context.Context, h *StatusHistory) error
	ListByAdvanceID(ctx context.Context, advanceID string) ([]StatusHistory, error)
}

type RepaymentRepository interface {
	Create(ctx context.Context, r *Repayment) error
	GetByReference(ctx context.Context, advanceID, reference string) (*Repayment, error)
	ListByAdvanceID(ctx context.Context, advanceID string) ([]Repayment, error)
}
