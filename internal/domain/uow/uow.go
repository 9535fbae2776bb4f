package uow

import (
	"context"
	"errors"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
)

// ErrConcurrencyConflict is returned when a lock or a versioned write loses a race.
// Callers may retry a bounded number of times.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// Repos are bound to one transaction.
type Repos struct {
	Advances     advance.Repository
	History      advance.HistoryRepository
	Repayments   advance.RepaymentRepository
	Pools        pool.Repository
	Reservations pool.ReservationRepository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the advance row first, then pass it in
	WithinAdvanceTx(ctx context.Context, advanceID string, fn func(r Repos, a *advance.Advance) error) error
	// lock the pool row first, then pass it in
	WithinPoolTx(ctx context.Context, poolID string, fn func(r Repos, p *pool.LiquidityPool) error) error
}

// Locker serializes work on a key (a pool or an advance) across goroutines,
// or across processes for distributed implementations.
type Locker interface {
	// Lock blocks until the key is held or gives up with ErrConcurrencyConflict.
	// The returned release func is safe to call more than once.
	Lock(ctx context.Context, key string) (release func(), err error)
}
