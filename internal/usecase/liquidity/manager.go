// Package liquidity is the only writer of liquidity pool balances.
//
// Every mutation of a pool runs under the pool's lock, inside one database transaction that
// loads the pool row FOR UPDATE and writes it back with a version compare-and-swap, so
// operations on the same pool behave as if executed one at a time while different pools
// proceed in parallel. The critical section performs no network I/O besides the store.
package liquidity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/infrastructure/metrics"
	"agri-advance/pkg/id"

	"github.com/shopspring/decimal"
)

const (
	DefaultReservationTTL = time.Hour
	defaultConflictRetry  = 3
	defaultSweepBatch     = 100
)

// Outcome describes what one manager call did to a reservation.
type Outcome struct {
	Reservation *pool.Reservation
	// Returned is the amount moved back to available by this call.
	Returned decimal.Decimal
	// WrittenOff is the amount removed from capital by this call.
	WrittenOff decimal.Decimal
	// Revenue is the amount credited to capital by this call.
	Revenue decimal.Decimal
	// Pool is the balance snapshot after the call.
	Pool pool.LiquidityPool
}

// Hook runs inside the manager's transaction after balances changed and before commit.
// Returning an error rolls back the whole operation, balances included.
type Hook func(r uow.Repos, o Outcome) error

// ExpiryHook runs inside the sweep's transaction for each reservation it expires.
// Returning an error rolls back that reservation's expiry; the sweep moves on to the next one.
type ExpiryHook func(ctx context.Context, r uow.Repos, o Outcome) error

type Manager struct {
	reservations pool.ReservationRepository
	pools        pool.Repository
	tx           uow.UnitOfWork
	locker       uow.Locker

	ttl        time.Duration
	retries    int
	sweepBatch int
	onExpire   []ExpiryHook
	now        func() time.Time
	log        *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Manager)

func WithReservationTTL(d time.Duration) Option { return func(m *Manager) { m.ttl = d } }
func WithClock(now func() time.Time) Option     { return func(m *Manager) { m.now = now } }
func WithLogger(l *slog.Logger) Option          { return func(m *Manager) { m.log = l } }
func WithMetrics(mx *metrics.Metrics) Option    { return func(m *Manager) { m.metrics = mx } }
func WithConflictRetries(n int) Option          { return func(m *Manager) { m.retries = n } }
func WithSweepBatch(n int) Option               { return func(m *Manager) { m.sweepBatch = n } }

// WithExpiryHook registers h to run for every reservation the sweep expires.
func WithExpiryHook(h ExpiryHook) Option {
	return func(m *Manager) { m.onExpire = append(m.onExpire, h) }
}

func NewManager(pools pool.Repository, reservations pool.ReservationRepository, tx uow.UnitOfWork, locker uow.Locker, opts ...Option) *Manager {
	m := &Manager{
		pools:        pools,
		reservations: reservations,
		tx:           tx,
		locker:       locker,
		ttl:          DefaultReservationTTL,
		retries:      defaultConflictRetry,
		sweepBatch:   defaultSweepBatch,
		now:          func() time.Time { return time.Now().UTC() },
		log:          slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func poolKey(poolID string) string { return "pool:" + poolID }

// mutate serializes fn against every other mutation of the same pool.
// fn may be re-run after a lost version race; the transaction is rolled back between runs.
func (m *Manager) mutate(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) (*pool.LiquidityPool, error) {
	release, err := m.locker.Lock(ctx, poolKey(poolID))
	if err != nil {
		return nil, err
	}
	defer release()

	var snapshot pool.LiquidityPool
	for attempt := 0; ; attempt++ {
		err = m.tx.WithinPoolTx(ctx, poolID, func(r uow.Repos, p *pool.LiquidityPool) error {
			if err := fn(r, p); err != nil {
				return err
			}
			if !p.Balanced() {
				return fmt.Errorf("%w: pool %s", pool.ErrImbalanced, poolID)
			}
			if err := r.Pools.UpdateBalances(ctx, p); err != nil {
				return err
			}
			snapshot = *p
			return nil
		})
		if err == nil {
			m.metrics.ObservePool(&snapshot)
			return &snapshot, nil
		}
		if !errors.Is(err, uow.ErrConcurrencyConflict) || attempt >= m.retries {
			return nil, err
		}
		m.log.Warn("pool version conflict, retrying", "pool_id", poolID, "attempt", attempt+1)
	}
}

func runHooks(r uow.Repos, o Outcome, hooks []Hook) error {
	for _, h := range hooks {
		if err := h(r, o); err != nil {
			return err
		}
	}
	return nil
}

func validAmount(a decimal.Decimal) error {
	if !a.IsPositive() || !a.Equal(a.Truncate(2)) {
		return fmt.Errorf("%w: got %s", pool.ErrInvalidAmount, a)
	}
	return nil
}

type CreatePoolInput struct {
	// PoolID is optional; a fresh id is generated when empty.
	PoolID   string
	Name     string
	Currency string
	Capital  decimal.Decimal
}

// CreatePool seeds a pool whose whole capital starts available.
func (m *Manager) CreatePool(ctx context.Context, in CreatePoolInput) (*pool.LiquidityPool, error) {
	if err := validAmount(in.Capital); err != nil {
		return nil, err
	}
	poolID := in.PoolID
	if poolID == "" {
		poolID = id.NewID32()
	}
	p := &pool.LiquidityPool{
		PoolID:           poolID,
		Name:             in.Name,
		Currency:         in.Currency,
		TotalCapital:     in.Capital,
		AvailableBalance: in.Capital,
		ReservedBalance:  decimal.Zero,
		AllocatedBalance: decimal.Zero,
		Revenue:          decimal.Zero,
		RealizedLoss:     decimal.Zero,
	}
	if err := m.pools.Create(ctx, p); err != nil {
		return nil, err
	}
	m.metrics.ObservePool(p)
	m.log.Info("pool created", "pool_id", p.PoolID, "capital", p.TotalCapital.String())
	return p, nil
}

func (m *Manager) GetPool(ctx context.Context, poolID string) (*pool.LiquidityPool, error) {
	return m.pools.GetByPoolID(ctx, poolID)
}

// EnsurePool returns the pool named by in.PoolID, creating it when it does not exist yet.
// An existing pool is never re-seeded.
func (m *Manager) EnsurePool(ctx context.Context, in CreatePoolInput) (*pool.LiquidityPool, error) {
	p, err := m.pools.GetByPoolID(ctx, in.PoolID)
	if err == nil {
		m.metrics.ObservePool(p)
		return p, nil
	}
	if !errors.Is(err, pool.ErrNotFound) {
		return nil, err
	}
	return m.CreatePool(ctx, in)
}

func (m *Manager) GetReservation(ctx context.Context, reservationID string) (*pool.Reservation, error) {
	return m.reservations.GetByReservationID(ctx, reservationID)
}

type ReserveInput struct {
	PoolID    string
	AdvanceID string
	Amount    decimal.Decimal
}

// Reserve earmarks capital for an advance. Fails with pool.ErrInsufficientLiquidity when
// available capital is short; an advance may hold only one open reservation.
func (m *Manager) Reserve(ctx context.Context, in ReserveInput, hooks ...Hook) (*Outcome, error) {
	if err := validAmount(in.Amount); err != nil {
		return nil, err
	}
	var out Outcome
	snap, err := m.mutate(ctx, in.PoolID, func(r uow.Repos, p *pool.LiquidityPool) error {
		existing, err := r.Reservations.GetOpenByAdvanceID(ctx, in.AdvanceID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: advance %s already holds reservation %s",
				pool.ErrInvalidReservationState, in.AdvanceID, existing.ReservationID)
		case !errors.Is(err, pool.ErrReservationNotFound):
			return err
		}

		if err := p.Reserve(in.Amount); err != nil {
			return fmt.Errorf("reserve %s from pool %s: %w", in.Amount, in.PoolID, err)
		}
		res := &pool.Reservation{
			ReservationID:    id.NewID32(),
			PoolID:           in.PoolID,
			AdvanceID:        in.AdvanceID,
			Amount:           in.Amount,
			ReleasedAmount:   decimal.Zero,
			WrittenOffAmount: decimal.Zero,
			Status:           pool.ReservationActive,
			ExpiresAt:        m.now().Add(m.ttl),
		}
		if err := r.Reservations.Create(ctx, res); err != nil {
			return err
		}
		out = Outcome{Reservation: res, Returned: decimal.Zero, WrittenOff: decimal.Zero, Revenue: decimal.Zero, Pool: *p}
		return runHooks(r, out, hooks)
	})
	m.metrics.ReservationOp("reserve", err)
	if err != nil {
		return nil, err
	}
	out.Pool = *snap
	m.log.Info("capital reserved",
		"pool_id", in.PoolID, "advance_id", in.AdvanceID,
		"reservation_id", out.Reservation.ReservationID, "amount", in.Amount.String())
	return &out, nil
}

// locate finds the pool a reservation belongs to, so the right pool lock can be taken.
func (m *Manager) locate(ctx context.Context, reservationID string) (string, error) {
	res, err := m.reservations.GetByReservationID(ctx, reservationID)
	if err != nil {
		return "", err
	}
	return res.PoolID, nil
}

// Commit turns an ACTIVE reservation into allocated capital.
func (m *Manager) Commit(ctx context.Context, reservationID string, hooks ...Hook) (*Outcome, error) {
	poolID, err := m.locate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	var out Outcome
	snap, err := m.mutate(ctx, poolID, func(r uow.Repos, p *pool.LiquidityPool) error {
		res, err := r.Reservations.GetByReservationIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		now := m.now()
		switch {
		case res.Status == pool.ReservationExpired, res.Stale(now):
			return fmt.Errorf("%w: reservation %s expired at %s",
				pool.ErrReservationExpired, reservationID, res.ExpiresAt.Format(time.RFC3339))
		case res.Status != pool.ReservationActive:
			return fmt.Errorf("%w: reservation %s is %s", pool.ErrInvalidReservationState, reservationID, res.Status)
		}

		amount := res.Outstanding()
		if err := p.Allocate(amount); err != nil {
			return err
		}
		res.Status = pool.ReservationCommitted
		res.CommittedAt = &now
		if err := r.Reservations.Save(ctx, res); err != nil {
			return err
		}
		out = Outcome{Reservation: res, Returned: decimal.Zero, WrittenOff: decimal.Zero, Revenue: decimal.Zero, Pool: *p}
		return runHooks(r, out, hooks)
	})
	m.metrics.ReservationOp("commit", err)
	if err != nil {
		return nil, err
	}
	out.Pool = *snap
	m.log.Info("reservation committed", "pool_id", poolID, "reservation_id", reservationID,
		"amount", out.Reservation.Amount.String())
	return &out, nil
}

// Release returns amount (nil: everything outstanding) from reserved or allocated back to
// available. Releasing a reservation that is already RELEASED or EXPIRED changes nothing and
// reports the same final state, so retried releases are safe. Hooks run in every case.
func (m *Manager) Release(ctx context.Context, reservationID string, amount *decimal.Decimal, hooks ...Hook) (*Outcome, error) {
	if amount != nil {
		if err := validAmount(*amount); err != nil {
			return nil, err
		}
	}
	poolID, err := m.locate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	var out Outcome
	snap, err := m.mutate(ctx, poolID, func(r uow.Repos, p *pool.LiquidityPool) error {
		res, err := r.Reservations.GetByReservationIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		out = Outcome{Reservation: res, Returned: decimal.Zero, WrittenOff: decimal.Zero, Revenue: decimal.Zero}
		if !res.Open() {
			out.Pool = *p
			return runHooks(r, out, hooks)
		}

		outstanding := res.Outstanding()
		give := outstanding
		if amount != nil {
			if amount.GreaterThan(outstanding) {
				return fmt.Errorf("%w: release %s exceeds outstanding %s", pool.ErrInvalidAmount, amount, outstanding)
			}
			give = *amount
		}
		if res.Status == pool.ReservationActive {
			err = p.Unreserve(give)
		} else {
			err = p.Deallocate(give)
		}
		if err != nil {
			return err
		}
		m.settle(res, give, decimal.Zero)
		if err := r.Reservations.Save(ctx, res); err != nil {
			return err
		}
		out.Returned = give
		out.Pool = *p
		return runHooks(r, out, hooks)
	})
	m.metrics.ReservationOp("release", err)
	if err != nil {
		return nil, err
	}
	out.Pool = *snap
	m.log.Info("reservation released", "pool_id", poolID, "reservation_id", reservationID,
		"returned", out.Returned.String(), "status", string(out.Reservation.Status))
	return &out, nil
}

// Collect books a repayment against a COMMITTED reservation: principal goes from allocated back
// to available, revenue (fee and interest) is added to the pool's capital.
func (m *Manager) Collect(ctx context.Context, reservationID string, principal, revenue decimal.Decimal, hooks ...Hook) (*Outcome, error) {
	if principal.IsNegative() || revenue.IsNegative() {
		return nil, fmt.Errorf("%w: principal %s revenue %s", pool.ErrInvalidAmount, principal, revenue)
	}
	poolID, err := m.locate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	var out Outcome
	snap, err := m.mutate(ctx, poolID, func(r uow.Repos, p *pool.LiquidityPool) error {
		res, err := r.Reservations.GetByReservationIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != pool.ReservationCommitted {
			return fmt.Errorf("%w: collect on %s reservation %s", pool.ErrInvalidReservationState, res.Status, reservationID)
		}
		if principal.GreaterThan(res.Outstanding()) {
			return fmt.Errorf("%w: principal %s exceeds allocation %s", pool.ErrInvalidAmount, principal, res.Outstanding())
		}
		if principal.IsPositive() {
			if err := p.Deallocate(principal); err != nil {
				return err
			}
		}
		if err := p.CreditRevenue(revenue); err != nil {
			return err
		}
		m.settle(res, principal, decimal.Zero)
		if err := r.Reservations.Save(ctx, res); err != nil {
			return err
		}
		out = Outcome{Reservation: res, Returned: principal, WrittenOff: decimal.Zero, Revenue: revenue, Pool: *p}
		return runHooks(r, out, hooks)
	})
	m.metrics.ReservationOp("collect", err)
	if err != nil {
		return nil, err
	}
	out.Pool = *snap
	m.log.Info("repayment collected", "pool_id", poolID, "reservation_id", reservationID,
		"principal", principal.String(), "revenue", revenue.String())
	return &out, nil
}

// WriteOff closes a COMMITTED reservation on default. recovered is capped at the outstanding
// allocation and returned to available; the rest is removed from capital as realized loss.
func (m *Manager) WriteOff(ctx context.Context, reservationID string, recovered decimal.Decimal, hooks ...Hook) (*Outcome, error) {
	if recovered.IsNegative() {
		return nil, fmt.Errorf("%w: recovered %s", pool.ErrInvalidAmount, recovered)
	}
	poolID, err := m.locate(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	var out Outcome
	snap, err := m.mutate(ctx, poolID, func(r uow.Repos, p *pool.LiquidityPool) error {
		res, err := r.Reservations.GetByReservationIDForUpdate(ctx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != pool.ReservationCommitted {
			return fmt.Errorf("%w: write-off on %s reservation %s", pool.ErrInvalidReservationState, res.Status, reservationID)
		}
		outstanding := res.Outstanding()
		back := decimal.Min(recovered, outstanding)
		loss := outstanding.Sub(back)
		if err := p.Deallocate(back); err != nil {
			return err
		}
		if err := p.WriteOff(loss); err != nil {
			return err
		}
		m.settle(res, back, loss)
		if err := r.Reservations.Save(ctx, res); err != nil {
			return err
		}
		out = Outcome{Reservation: res, Returned: back, WrittenOff: loss, Revenue: decimal.Zero, Pool: *p}
		return runHooks(r, out, hooks)
	})
	m.metrics.ReservationOp("write_off", err)
	if err != nil {
		return nil, err
	}
	out.Pool = *snap
	m.metrics.Loss(out.WrittenOff.InexactFloat64())
	m.log.Warn("reservation written off", "pool_id", poolID, "reservation_id", reservationID,
		"recovered", out.Returned.String(), "loss", out.WrittenOff.String())
	return &out, nil
}

// settle books returned and lost capital on the reservation and closes it once nothing is left.
func (m *Manager) settle(res *pool.Reservation, returned, lost decimal.Decimal) {
	res.ReleasedAmount = res.ReleasedAmount.Add(returned)
	res.WrittenOffAmount = res.WrittenOffAmount.Add(lost)
	if res.Outstanding().IsZero() {
		now := m.now()
		res.Status = pool.ReservationReleased
		res.ClosedAt = &now
	}
}

// ExpireStaleReservations releases every ACTIVE reservation past its expiry, marks it EXPIRED and
// runs the expiry hooks in the same transaction. Each reservation is re-checked under its pool
// lock, so one committed concurrently is left alone.
func (m *Manager) ExpireStaleReservations(ctx context.Context) (int, error) {
	stale, err := m.reservations.ListStale(ctx, m.now(), m.sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list stale reservations: %w", err)
	}

	var (
		expired int
		errs    []error
	)
	for _, s := range stale {
		var swept bool
		_, err := m.mutate(ctx, s.PoolID, func(r uow.Repos, p *pool.LiquidityPool) error {
			swept = false
			res, err := r.Reservations.GetByReservationIDForUpdate(ctx, s.ReservationID)
			if err != nil {
				return err
			}
			now := m.now()
			if !res.Stale(now) {
				return nil
			}
			amount := res.Outstanding()
			if err := p.Unreserve(amount); err != nil {
				return err
			}
			res.ReleasedAmount = res.ReleasedAmount.Add(amount)
			res.Status = pool.ReservationExpired
			res.ClosedAt = &now
			if err := r.Reservations.Save(ctx, res); err != nil {
				return err
			}
			o := Outcome{Reservation: res, Returned: amount, WrittenOff: decimal.Zero, Revenue: decimal.Zero, Pool: *p}
			for _, h := range m.onExpire {
				if err := h(ctx, r, o); err != nil {
					return err
				}
			}
			swept = true
			return nil
		})
		m.metrics.ReservationOp("expire", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", s.ReservationID, err))
			continue
		}
		if swept {
			expired++
			m.log.Info("reservation expired", "pool_id", s.PoolID, "reservation_id", s.ReservationID,
				"advance_id", s.AdvanceID, "amount", s.Outstanding().String())
		}
	}
	m.metrics.Expired(expired)
	return expired, errors.Join(errs...)
}

// RunSweeper calls ExpireStaleReservations every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := m.ExpireStaleReservations(ctx)
			if err != nil {
				m.log.Error("reservation sweep failed", "error", err, "expired", n)
			}
		}
	}
}
