package liquidity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agri-advance/internal/adapter/repository/mysql"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/infrastructure/lock"
	"agri-advance/internal/testutil/dbtest"
	"agri-advance/internal/testutil/uowmock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestManager(t *testing.T, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now), WithReservationTTL(30 * time.Minute)}, opts...)
	m := NewManager(
		mysql.NewPoolRepository(db),
		mysql.NewReservationRepository(db),
		mysql.NewGormUoW(db),
		lock.NewLocal(10*time.Second),
		opts...,
	)
	return m, clock
}

func seedPool(t *testing.T, m *Manager, capital string) *pool.LiquidityPool {
	t.Helper()
	p, err := m.CreatePool(context.Background(), CreatePoolInput{Name: "north", Currency: "KES", Capital: dec(capital)})
	require.NoError(t, err)
	return p
}

func requirePool(t *testing.T, m *Manager, poolID, total, available, reserved, allocated string) {
	t.Helper()
	p, err := m.GetPool(context.Background(), poolID)
	require.NoError(t, err)
	assert.True(t, p.TotalCapital.Equal(dec(total)), "total %s", p.TotalCapital)
	assert.True(t, p.AvailableBalance.Equal(dec(available)), "available %s", p.AvailableBalance)
	assert.True(t, p.ReservedBalance.Equal(dec(reserved)), "reserved %s", p.ReservedBalance)
	assert.True(t, p.AllocatedBalance.Equal(dec(allocated)), "allocated %s", p.AllocatedBalance)
	assert.True(t, p.Balanced(), "pool out of balance")
}

func TestEnsurePool_CreatesOnceWithGivenID(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	in := CreatePoolInput{PoolID: "pool-main", Name: "main", Currency: "KES", Capital: dec("100000")}

	p, err := m.EnsurePool(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "pool-main", p.PoolID)

	_, err = m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("4000")})
	require.NoError(t, err)

	in.Capital = dec("999999")
	again, err := m.EnsurePool(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.AvailableBalance.Equal(dec("96000")), "existing pool must not be re-seeded")
}

func TestReserve_MovesAvailableToReserved(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	out, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationActive, out.Reservation.Status)
	assert.True(t, out.Reservation.ExpiresAt.Equal(clock.Now().Add(30*time.Minute)))
	assert.True(t, out.Pool.AvailableBalance.Equal(dec("5000")))

	requirePool(t, m, p.PoolID, "10000", "5000", "5000", "0")
}

func TestReserve_InsufficientLiquidityLeavesPoolUntouched(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "3000")

	_, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.ErrorIs(t, err, pool.ErrInsufficientLiquidity)

	requirePool(t, m, p.PoolID, "3000", "3000", "0", "0")
	_, err = m.reservations.GetOpenByAdvanceID(ctx, "adv-1")
	require.ErrorIs(t, err, pool.ErrReservationNotFound)
}

func TestReserve_RejectsSecondOpenReservation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	_, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("1000")})
	require.NoError(t, err)
	_, err = m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("1000")})
	require.ErrorIs(t, err, pool.ErrInvalidReservationState)

	requirePool(t, m, p.PoolID, "10000", "9000", "1000", "0")
}

func TestReserve_InvalidAmounts(t *testing.T) {
	m, _ := newTestManager(t)
	p := seedPool(t, m, "10000")

	for _, amt := range []string{"0", "-5", "10.001"} {
		_, err := m.Reserve(context.Background(), ReserveInput{PoolID: p.PoolID, AdvanceID: "adv", Amount: dec(amt)})
		assert.ErrorIs(t, err, pool.ErrInvalidAmount, amt)
	}
}

func TestReserve_UnknownPool(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Reserve(context.Background(), ReserveInput{PoolID: "missing", AdvanceID: "adv", Amount: dec("1")})
	require.ErrorIs(t, err, pool.ErrNotFound)
}

func TestReserve_HookErrorRollsBack(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")
	boom := errors.New("boom")

	_, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("4000")},
		func(uow.Repos, Outcome) error { return boom })
	require.ErrorIs(t, err, boom)

	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
	_, err = m.reservations.GetOpenByAdvanceID(ctx, "adv-1")
	require.ErrorIs(t, err, pool.ErrReservationNotFound)
}

func TestCommit_MovesReservedToAllocated(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	out, err := m.Commit(ctx, r.Reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationCommitted, out.Reservation.Status)
	require.NotNil(t, out.Reservation.CommittedAt)

	requirePool(t, m, p.PoolID, "10000", "5000", "0", "5000")

	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.ErrorIs(t, err, pool.ErrInvalidReservationState)
}

func TestCommit_AfterExpiryFails(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("2000")})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.ErrorIs(t, err, pool.ErrReservationExpired)
	requirePool(t, m, p.PoolID, "10000", "8000", "2000", "0")

	n, err := m.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")

	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.ErrorIs(t, err, pool.ErrReservationExpired)
}

func TestRelease_ActiveReservationIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)

	first, err := m.Release(ctx, r.Reservation.ReservationID, nil)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationReleased, first.Reservation.Status)
	assert.True(t, first.Returned.Equal(dec("5000")))
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")

	second, err := m.Release(ctx, r.Reservation.ReservationID, nil)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationReleased, second.Reservation.Status)
	assert.True(t, second.Returned.IsZero())
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
}

func TestRelease_PartialThenRest(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.NoError(t, err)

	part := dec("1500")
	out, err := m.Release(ctx, r.Reservation.ReservationID, &part)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationCommitted, out.Reservation.Status)
	requirePool(t, m, p.PoolID, "10000", "6500", "0", "3500")

	tooMuch := dec("4000")
	_, err = m.Release(ctx, r.Reservation.ReservationID, &tooMuch)
	require.ErrorIs(t, err, pool.ErrInvalidAmount)

	out, err = m.Release(ctx, r.Reservation.ReservationID, nil)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationReleased, out.Reservation.Status)
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
}

func TestRelease_ExpiredIsNoop(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("1000")})
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = m.ExpireStaleReservations(ctx)
	require.NoError(t, err)

	var hooked bool
	out, err := m.Release(ctx, r.Reservation.ReservationID, nil, func(uow.Repos, Outcome) error {
		hooked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hooked)
	assert.Equal(t, pool.ReservationExpired, out.Reservation.Status)
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
}

// Disbursed 5000 with fee 150 and interest 100, repaid in full: principal comes back
// and fee plus interest grow the pool.
func TestCollect_FullRepaymentGrowsPool(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.NoError(t, err)

	out, err := m.Collect(ctx, r.Reservation.ReservationID, dec("5000"), dec("250"))
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationReleased, out.Reservation.Status)
	requirePool(t, m, p.PoolID, "10250", "10250", "0", "0")

	got, err := m.GetPool(ctx, p.PoolID)
	require.NoError(t, err)
	assert.True(t, got.Revenue.Equal(dec("250")))
}

func TestCollect_RequiresCommitted(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = m.Collect(ctx, r.Reservation.ReservationID, dec("100"), decimal.Zero)
	require.ErrorIs(t, err, pool.ErrInvalidReservationState)
}

// 5000 allocated, 1000 recovered on default: 4000 is realized loss.
func TestWriteOff_RecordsLoss(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("5000")})
	require.NoError(t, err)
	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.NoError(t, err)

	out, err := m.WriteOff(ctx, r.Reservation.ReservationID, dec("1000"))
	require.NoError(t, err)
	assert.True(t, out.Returned.Equal(dec("1000")))
	assert.True(t, out.WrittenOff.Equal(dec("4000")))
	assert.Equal(t, pool.ReservationReleased, out.Reservation.Status)
	requirePool(t, m, p.PoolID, "6000", "6000", "0", "0")

	got, err := m.GetPool(ctx, p.PoolID)
	require.NoError(t, err)
	assert.True(t, got.RealizedLoss.Equal(dec("4000")))
}

func TestWriteOff_CapsRecoveryAtOutstanding(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	r, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("2000")})
	require.NoError(t, err)
	_, err = m.Commit(ctx, r.Reservation.ReservationID)
	require.NoError(t, err)

	out, err := m.WriteOff(ctx, r.Reservation.ReservationID, dec("9000"))
	require.NoError(t, err)
	assert.True(t, out.Returned.Equal(dec("2000")))
	assert.True(t, out.WrittenOff.IsZero())
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
}

func TestExpireStaleReservations_SkipsFreshAndCommitted(t *testing.T) {
	m, clock := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	stale, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-stale", Amount: dec("1000")})
	require.NoError(t, err)
	committed, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-committed", Amount: dec("2000")})
	require.NoError(t, err)
	_, err = m.Commit(ctx, committed.Reservation.ReservationID)
	require.NoError(t, err)

	clock.Advance(20 * time.Minute)
	_, err = m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-fresh", Amount: dec("3000")})
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	n, err := m.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.GetReservation(ctx, stale.Reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationExpired, got.Status)
	requirePool(t, m, p.PoolID, "10000", "5000", "3000", "2000")

	n, err = m.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// C = 1000, S = 100: exactly floor(C/S) concurrent reservations succeed.
func TestExpireStaleReservations_RunsExpiryHooks(t *testing.T) {
	var seen []Outcome
	m, clock := newTestManager(t, WithExpiryHook(func(_ context.Context, r uow.Repos, o Outcome) error {
		assert.NotNil(t, r.Advances, "hook must get tx-bound repos")
		seen = append(seen, o)
		return nil
	}))
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	res, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("4000")})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	n, err := m.ExpireStaleReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, seen, 1)
	assert.Equal(t, "adv-1", seen[0].Reservation.AdvanceID)
	assert.Equal(t, res.Reservation.ReservationID, seen[0].Reservation.ReservationID)
	assert.Equal(t, pool.ReservationExpired, seen[0].Reservation.Status)
	require.NotNil(t, seen[0].Reservation.ClosedAt)
	assert.True(t, seen[0].Returned.Equal(dec("4000")))
	requirePool(t, m, p.PoolID, "10000", "10000", "0", "0")
}

func TestExpireStaleReservations_HookErrorRollsBack(t *testing.T) {
	boom := errors.New("advance store down")
	m, clock := newTestManager(t, WithExpiryHook(func(context.Context, uow.Repos, Outcome) error { return boom }))
	ctx := context.Background()
	p := seedPool(t, m, "10000")

	res, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("4000")})
	require.NoError(t, err)
	clock.Advance(time.Hour)

	n, err := m.ExpireStaleReservations(ctx)
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)

	got, err := m.GetReservation(ctx, res.Reservation.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, pool.ReservationActive, got.Status)
	assert.Nil(t, got.ClosedAt)
	requirePool(t, m, p.PoolID, "10000", "6000", "4000", "0")
}

func TestReserve_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	p := seedPool(t, m, "1000")

	const workers = 25
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-" + string(rune('a'+i)), Amount: dec("100")})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, pool.ErrInsufficientLiquidity):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 10, succeeded.Load())
	assert.EqualValues(t, workers-10, short.Load())
	requirePool(t, m, p.PoolID, "1000", "0", "1000", "0")
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunSweeper(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMutate_RetriesVersionConflicts(t *testing.T) {
	db := dbtest.Open(t)
	tx := uowmock.Wrap(mysql.NewGormUoW(db))
	m := NewManager(mysql.NewPoolRepository(db), mysql.NewReservationRepository(db), tx,
		lock.NewLocal(time.Second), WithConflictRetries(2))
	ctx := context.Background()
	p := seedPool(t, m, "1000")

	tx.WithinPoolTxFn = uowmock.FailPoolTx(2, uow.ErrConcurrencyConflict, mysql.NewGormUoW(db).WithinPoolTx)
	_, err := m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("100")})
	require.NoError(t, err)
	requirePool(t, m, p.PoolID, "1000", "900", "100", "0")

	tx.WithinPoolTxFn = uowmock.FailPoolTx(3, uow.ErrConcurrencyConflict, mysql.NewGormUoW(db).WithinPoolTx)
	_, err = m.Reserve(ctx, ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-2", Amount: dec("100")})
	require.ErrorIs(t, err, uow.ErrConcurrencyConflict)
	requirePool(t, m, p.PoolID, "1000", "900", "100", "0")
}

func TestMutate_DoesNotRetryOtherErrors(t *testing.T) {
	db := dbtest.Open(t)
	tx := uowmock.Wrap(mysql.NewGormUoW(db))
	m := NewManager(mysql.NewPoolRepository(db), mysql.NewReservationRepository(db), tx, lock.NewLocal(time.Second))
	p := seedPool(t, m, "1000")

	boom := errors.New("connection lost")
	calls := 0
	tx.WithinPoolTxFn = func(context.Context, string, func(uow.Repos, *pool.LiquidityPool) error) error {
		calls++
		return boom
	}
	_, err := m.Reserve(context.Background(), ReserveInput{PoolID: p.PoolID, AdvanceID: "adv-1", Amount: dec("100")})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
