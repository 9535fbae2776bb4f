package uowmock

import (
	"context"
	"errors"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"
)

var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn        func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinAdvanceTxFn func(ctx context.Context, advanceID string, fn func(r uow.Repos, a *advance.Advance) error) error
	WithinPoolTxFn    func(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) error
}

// Wrap forwards every call to inner; override single fields afterwards to inject faults.
func Wrap(inner uow.UnitOfWork) *UoW {
	return &UoW{
		WithinTxFn:        inner.WithinTx,
		WithinAdvanceTxFn: inner.WithinAdvanceTx,
		WithinPoolTxFn:    inner.WithinPoolTx,
	}
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinAdvanceTx(ctx context.Context, advanceID string, fn func(r uow.Repos, a *advance.Advance) error) error {
	if m.WithinAdvanceTxFn != nil {
		return m.WithinAdvanceTxFn(ctx, advanceID, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinPoolTx(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) error {
	if m.WithinPoolTxFn != nil {
		return m.WithinPoolTxFn(ctx, poolID, fn)
	}
	return errUnimplemented
}

// FailPoolTx makes the next n WithinPoolTx calls fail with err before delegating to next.
func FailPoolTx(n int, err error, next func(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) error) func(context.Context, string, func(uow.Repos, *pool.LiquidityPool) error) error {
	calls := 0
	return func(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) error {
		calls++
		if calls <= n {
			return err
		}
		return next(ctx, poolID, fn)
	}
}
