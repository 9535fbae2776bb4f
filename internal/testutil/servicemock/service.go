package servicemock

import (
	"context"
	"errors"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/usecase/lifecycle"
	"agri-advance/internal/usecase/liquidity"
)

var errUnimplemented = errors.New("servicemock: method not implemented")

// Advances is a function-backed fake of the lifecycle service as the HTTP layer sees it.
// Unset functions return errUnimplemented.
type Advances struct {
	CalculateTermsFn          func(ctx context.Context, in lifecycle.QuoteInput) (*lifecycle.Quote, error)
	RequestAdvanceFn          func(ctx context.Context, in lifecycle.RequestInput) (*advance.Advance, error)
	TransitionStatusFn        func(ctx context.Context, in lifecycle.TransitionInput) (*advance.Advance, error)
	MarkAsDefaultedFn         func(ctx context.Context, in lifecycle.DefaultInput) (*advance.Advance, error)
	ProcessRepaymentFn        func(ctx context.Context, in lifecycle.RepaymentInput) (*lifecycle.RepaymentResult, error)
	GetAdvanceDetailsFn       func(ctx context.Context, advanceID string) (*lifecycle.Details, error)
	GetFarmerAdvancesFn       func(ctx context.Context, farmerID string, status advance.Status) ([]advance.Advance, error)
	GetStatusHistoryFn        func(ctx context.Context, advanceID string) ([]advance.StatusHistory, error)
	ListPendingVerificationFn func(ctx context.Context, limit int) ([]advance.Advance, error)
}

func (m *Advances) CalculateTerms(ctx context.Context, in lifecycle.QuoteInput) (*lifecycle.Quote, error) {
	if m.CalculateTermsFn != nil {
		return m.CalculateTermsFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Advances) RequestAdvance(ctx context.Context, in lifecycle.RequestInput) (*advance.Advance, error) {
	if m.RequestAdvanceFn != nil {
		return m.RequestAdvanceFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Advances) TransitionStatus(ctx context.Context, in lifecycle.TransitionInput) (*advance.Advance, error) {
	if m.TransitionStatusFn != nil {
		return m.TransitionStatusFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Advances) MarkAsDefaulted(ctx context.Context, in lifecycle.DefaultInput) (*advance.Advance, error) {
	if m.MarkAsDefaultedFn != nil {
		return m.MarkAsDefaultedFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Advances) ProcessRepayment(ctx context.Context, in lifecycle.RepaymentInput) (*lifecycle.RepaymentResult, error) {
	if m.ProcessRepaymentFn != nil {
		return m.ProcessRepaymentFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Advances) GetAdvanceDetails(ctx context.Context, advanceID string) (*lifecycle.Details, error) {
	if m.GetAdvanceDetailsFn != nil {
		return m.GetAdvanceDetailsFn(ctx, advanceID)
	}
	return nil, errUnimplemented
}

func (m *Advances) GetFarmerAdvances(ctx context.Context, farmerID string, status advance.Status) ([]advance.Advance, error) {
	if m.GetFarmerAdvancesFn != nil {
		return m.GetFarmerAdvancesFn(ctx, farmerID, status)
	}
	return nil, errUnimplemented
}

func (m *Advances) GetStatusHistory(ctx context.Context, advanceID string) ([]advance.StatusHistory, error) {
	if m.GetStatusHistoryFn != nil {
		return m.GetStatusHistoryFn(ctx, advanceID)
	}
	return nil, errUnimplemented
}

func (m *Advances) ListPendingVerification(ctx context.Context, limit int) ([]advance.Advance, error) {
	if m.ListPendingVerificationFn != nil {
		return m.ListPendingVerificationFn(ctx, limit)
	}
	return nil, errUnimplemented
}

// Pools is a function-backed fake of the pool manager's read/create surface.
type Pools struct {
	CreatePoolFn func(ctx context.Context, in liquidity.CreatePoolInput) (*pool.LiquidityPool, error)
	GetPoolFn    func(ctx context.Context, poolID string) (*pool.LiquidityPool, error)
}

func (m *Pools) CreatePool(ctx context.Context, in liquidity.CreatePoolInput) (*pool.LiquidityPool, error) {
	if m.CreatePoolFn != nil {
		return m.CreatePoolFn(ctx, in)
	}
	return nil, errUnimplemented
}

func (m *Pools) GetPool(ctx context.Context, poolID string) (*pool.LiquidityPool, error) {
	if m.GetPoolFn != nil {
		return m.GetPoolFn(ctx, poolID)
	}
	return nil, errUnimplemented
}
