package pool

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, p *LiquidityPool) error
	GetByPoolID(ctx context.Context, poolID string) (*LiquidityPool, error)
	GetByPoolIDForUpdate(ctx context.Context, poolID string) (*LiquidityPool, error)
	// UpdateBalances writes balances only if the stored version still equals p.Version,
	// then bumps p.Version. A lost race returns uow.ErrConcurrencyConflict.
	UpdateBalances(ctx context.Context, p *LiquidityPool) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r *Reservation) error
	Save(ctx context.Context, r *Reservation) error
	GetByReservationID(ctx context.Context, reservationID string) (*Reservation, error)
	GetByReservationIDForUpdate(ctx context.Context, reservationID string) (*Reservation, error)
	// GetOpenByAdvanceID returns the ACTIVE or COMMITTED reservation of an advance.
	GetOpenByAdvanceID(ctx context.Context, advanceID string) (*Reservation, error)
	ListStale(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
}
