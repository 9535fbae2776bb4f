// Package lifecycle owns the advance state machine: quoting, requesting, approving, disbursing,
// repaying and defaulting advances. Balance effects are delegated to the liquidity manager and
// run inside its pool transaction, so a contract and its capital always move together.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/infrastructure/metrics"
	"agri-advance/internal/usecase/liquidity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultGateTimeout   = 2 * time.Second
	defaultNotifyTimeout = 3 * time.Second
	defaultPendingLimit  = 50
	maxPendingLimit      = 500
)

// Liquidity is the slice of the pool manager the lifecycle needs.
type Liquidity interface {
	Reserve(ctx context.Context, in liquidity.ReserveInput, hooks ...liquidity.Hook) (*liquidity.Outcome, error)
	Commit(ctx context.Context, reservationID string, hooks ...liquidity.Hook) (*liquidity.Outcome, error)
	Release(ctx context.Context, reservationID string, amount *decimal.Decimal, hooks ...liquidity.Hook) (*liquidity.Outcome, error)
	Collect(ctx context.Context, reservationID string, principal, revenue decimal.Decimal, hooks ...liquidity.Hook) (*liquidity.Outcome, error)
	WriteOff(ctx context.Context, reservationID string, recovered decimal.Decimal, hooks ...liquidity.Hook) (*liquidity.Outcome, error)
}

// Deps are the collaborators every Service needs. Proofs and Publisher may be nil.
type Deps struct {
	Advances   advance.Repository
	History    advance.HistoryRepository
	Repayments advance.RepaymentRepository
	Tx         uow.UnitOfWork
	Liquidity  Liquidity
	Locker     uow.Locker
	Gate       advance.EligibilityGate
	Orders     advance.OrderReader
	Proofs     advance.ProofQueue
	Publisher  advance.Publisher
	PoolID     string
	Policy     Policy
}

type Service struct {
	Deps

	gateTimeout   time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	log           *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Service)

func WithGateTimeout(d time.Duration) Option   { return func(s *Service) { s.gateTimeout = d } }
func WithNotifyTimeout(d time.Duration) Option { return func(s *Service) { s.notifyTimeout = d } }
func WithClock(now func() time.Time) Option    { return func(s *Service) { s.now = now } }
func WithLogger(l *slog.Logger) Option         { return func(s *Service) { s.log = l } }
func WithMetrics(m *metrics.Metrics) Option    { return func(s *Service) { s.metrics = m } }

func NewService(d Deps, opts ...Option) *Service {
	s := &Service{
		Deps:          d,
		gateTimeout:   defaultGateTimeout,
		notifyTimeout: defaultNotifyTimeout,
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func advanceKey(advanceID string) string { return "advance:" + advanceID }

// lockAdvance serializes transitions and repayments on one advance and loads it.
func (s *Service) lockAdvance(ctx context.Context, advanceID string) (*advance.Advance, func(), error) {
	if advanceID == "" {
		return nil, nil, fmt.Errorf("%w: advance_id is required", advance.ErrValidation)
	}
	release, err := s.Locker.Lock(ctx, advanceKey(advanceID))
	if err != nil {
		return nil, nil, err
	}
	a, err := s.Advances.GetByAdvanceID(ctx, advanceID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return a, release, nil
}

// step re-reads the advance inside tx r, checks it is still in status from, applies mutate and,
// when to differs from from, appends the history row.
func (s *Service) step(ctx context.Context, r uow.Repos, advanceID string, from, to advance.Status, actorID, reason string, mutate func(a *advance.Advance)) (*advance.Advance, error) {
	a, err := r.Advances.GetByAdvanceIDForUpdate(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	return applyStep(ctx, r, a, from, to, actorID, reason, s.now(), mutate)
}

// applyStep moves an advance already locked in tx r.
func applyStep(ctx context.Context, r uow.Repos, a *advance.Advance, from, to advance.Status, actorID, reason string, at time.Time, mutate func(a *advance.Advance)) (*advance.Advance, error) {
	if a.Status != from {
		return nil, fmt.Errorf("%w: advance %s moved to %s", uow.ErrConcurrencyConflict, a.AdvanceID, a.Status)
	}
	if mutate != nil {
		mutate(a)
	}
	if to != from {
		a.Status = to
	}
	if err := r.Advances.Save(ctx, a); err != nil {
		return nil, err
	}
	if to == from {
		return a, nil
	}
	err := r.History.Append(ctx, &advance.StatusHistory{
		AdvanceID:  a.AdvanceID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  at,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) notify(ctx context.Context, a *advance.Advance, amount decimal.Decimal) {
	s.metrics.Transition(string(a.Status))
	if s.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	err := s.Publisher.Publish(ctx, advance.Event{
		EventID:    uuid.NewString(),
		AdvanceID:  a.AdvanceID,
		FarmerID:   a.FarmerID,
		Status:     a.Status,
		Amount:     amount,
		OccurredAt: s.now(),
	})
	s.metrics.Notification(err)
	if err != nil {
		s.log.Warn("notification failed", "advance_id", a.AdvanceID, "status", string(a.Status), "error", err)
	}
}

func validMoney(a decimal.Decimal) bool {
	return a.Equal(a.Truncate(2))
}

func (s *Service) GetAdvanceDetails(ctx context.Context, advanceID string) (*Details, error) {
	a, err := s.Advances.GetByAdvanceID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	reps, err := s.Repayments.ListByAdvanceID(ctx, advanceID)
	if err != nil {
		return nil, err
	}
	fee, interest, principal := a.Outstanding()
	return &Details{
		Advance: *a,
		Outstanding: Outstanding{
			Fee:       fee,
			Interest:  interest,
			Principal: principal,
			Total:     a.OutstandingTotal(),
		},
		Repayments: reps,
	}, nil
}

// GetFarmerAdvances lists a farmer's advances, optionally filtered by status.
func (s *Service) GetFarmerAdvances(ctx context.Context, farmerID string, status advance.Status) ([]advance.Advance, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("%w: farmer_id is required", advance.ErrValidation)
	}
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", advance.ErrValidation, status)
	}
	return s.Advances.ListByFarmerID(ctx, farmerID, status)
}

func (s *Service) GetStatusHistory(ctx context.Context, advanceID string) ([]advance.StatusHistory, error) {
	if _, err := s.Advances.GetByAdvanceID(ctx, advanceID); err != nil {
		return nil, err
	}
	return s.History.ListByAdvanceID(ctx, advanceID)
}

// ListPendingVerification returns disbursed advances whose proof has not been confirmed.
func (s *Service) ListPendingVerification(ctx context.Context, limit int) ([]advance.Advance, error) {
	switch {
	case limit <= 0:
		limit = defaultPendingLimit
	case limit > maxPendingLimit:
		limit = maxPendingLimit
	}
	return s.Advances.ListPendingVerification(ctx, limit)
}

func isNotFound(err error) bool { return errors.Is(err, advance.ErrNotFound) }
