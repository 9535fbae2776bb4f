package lifecycle

import (
	"context"
	"fmt"
	"time"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/usecase/liquidity"

	"github.com/shopspring/decimal"
)

// TransitionStatus moves an advance along the state machine and performs the move's pool effect
// in the same transaction. REPAID is only reachable through ProcessRepayment.
func (s *Service) TransitionStatus(ctx context.Context, in TransitionInput) (*advance.Advance, error) {
	if !in.Target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", advance.ErrValidation, in.Target)
	}
	a, release, err := s.lockAdvance(ctx, in.AdvanceID)
	if err != nil {
		return nil, err
	}
	defer release()

	if in.Target == advance.StatusRepaid || !advance.CanTransition(a.Status, in.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", advance.ErrInvalidStatusTransition, a.Status, in.Target)
	}

	switch in.Target {
	case advance.StatusApproved:
		return s.approve(ctx, a, in)
	case advance.StatusRejected:
		return s.reject(ctx, a, in)
	case advance.StatusDisbursed:
		return s.disburse(ctx, a, in)
	default:
		recovered := decimal.Zero
		if in.RecoveredAmount != nil {
			recovered = *in.RecoveredAmount
		}
		return s.markDefaulted(ctx, a, DefaultInput{
			AdvanceID:       in.AdvanceID,
			Reason:          in.Reason,
			RecoveredAmount: recovered,
			ActorID:         in.ActorID,
		})
	}
}

// approve needs the reservation to still hold its capital. One past its expiry fails even if
// the sweep has not reached it yet.
func (s *Service) approve(ctx context.Context, a *advance.Advance, in TransitionInput) (*advance.Advance, error) {
	var out *advance.Advance
	err := s.Tx.WithinAdvanceTx(ctx, a.AdvanceID, func(r uow.Repos, cur *advance.Advance) error {
		res, err := r.Reservations.GetByReservationID(ctx, cur.ReservationID)
		if err != nil {
			return err
		}
		now := s.now()
		switch {
		case res.Status == pool.ReservationExpired || res.Stale(now):
			return fmt.Errorf("%w: reservation %s expired at %s",
				pool.ErrReservationExpired, res.ReservationID, res.ExpiresAt.Format(time.RFC3339))
		case res.Status != pool.ReservationActive:
			return fmt.Errorf("%w: reservation %s is %s", pool.ErrInvalidReservationState, res.ReservationID, res.Status)
		}
		out, err = applyStep(ctx, r, cur, advance.StatusRequested, advance.StatusApproved, in.ActorID, in.Reason, now,
			func(a *advance.Advance) { a.ApprovedAt = &now })
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(out.Status))
	s.log.Info("advance approved", "advance_id", out.AdvanceID, "actor_id", in.ActorID)
	return out, nil
}

// reject releases the whole reservation. A reservation the sweep already expired is left as is.
func (s *Service) reject(ctx context.Context, a *advance.Advance, in TransitionInput) (*advance.Advance, error) {
	var out *advance.Advance
	_, err := s.Liquidity.Release(ctx, a.ReservationID, nil, func(r uow.Repos, _ liquidity.Outcome) error {
		var err error
		out, err = s.step(ctx, r, a.AdvanceID, a.Status, advance.StatusRejected, in.ActorID, in.Reason,
			func(a *advance.Advance) {
				now := s.now()
				a.RejectedAt = &now
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transition(string(out.Status))
	s.log.Info("advance rejected", "advance_id", out.AdvanceID, "actor_id", in.ActorID, "reason", in.Reason)
	return out, nil
}

// disburse commits the reservation and hands the proof to the recorder queue after commit.
// The proof outcome never affects the disbursement.
func (s *Service) disburse(ctx context.Context, a *advance.Advance, in TransitionInput) (*advance.Advance, error) {
	var out *advance.Advance
	_, err := s.Liquidity.Commit(ctx, a.ReservationID, func(r uow.Repos, o liquidity.Outcome) error {
		var err error
		out, err = s.step(ctx, r, a.AdvanceID, advance.StatusApproved, advance.StatusDisbursed, in.ActorID, in.Reason,
			func(a *advance.Advance) {
				now := s.now()
				a.DisbursedAt = &now
				a.DisbursedAmount = o.Reservation.Amount
				a.DisbursementReference = in.DisbursementReference
				a.VerificationStatus = advance.VerificationPending
				a.VerificationPending = true
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("advance disbursed", "advance_id", out.AdvanceID, "amount", out.DisbursedAmount.String(),
		"reference", out.DisbursementReference)
	if s.Proofs != nil {
		queued := s.Proofs.Enqueue(advance.ProofRequest{
			AdvanceID:   out.AdvanceID,
			FarmerID:    out.FarmerID,
			Amount:      out.DisbursedAmount,
			Reference:   out.DisbursementReference,
			DisbursedAt: *out.DisbursedAt,
		})
		if !queued {
			s.log.Warn("proof queue full, left pending", "advance_id", out.AdvanceID)
		}
	}
	s.notify(ctx, out, out.DisbursedAmount)
	return out, nil
}

// MarkAsDefaulted closes a DISBURSED advance. The recovered amount is capped at the capital
// still allocated to it; the rest becomes realized loss on the pool.
func (s *Service) MarkAsDefaulted(ctx context.Context, in DefaultInput) (*advance.Advance, error) {
	if in.RecoveredAmount.IsNegative() || !validMoney(in.RecoveredAmount) {
		return nil, fmt.Errorf("%w: recovered_amount must be >= 0 with at most 2 decimals", advance.ErrValidation)
	}
	a, release, err := s.lockAdvance(ctx, in.AdvanceID)
	if err != nil {
		return nil, err
	}
	defer release()

	if a.Status != advance.StatusDisbursed {
		return nil, fmt.Errorf("%w: %s -> %s", advance.ErrInvalidStatusTransition, a.Status, advance.StatusDefaulted)
	}
	return s.markDefaulted(ctx, a, in)
}

func (s *Service) markDefaulted(ctx context.Context, a *advance.Advance, in DefaultInput) (*advance.Advance, error) {
	if in.RecoveredAmount.IsNegative() || !validMoney(in.RecoveredAmount) {
		return nil, fmt.Errorf("%w: recovered_amount must be >= 0 with at most 2 decimals", advance.ErrValidation)
	}
	var out *advance.Advance
	o, err := s.Liquidity.WriteOff(ctx, a.ReservationID, in.RecoveredAmount, func(r uow.Repos, o liquidity.Outcome) error {
		var err error
		out, err = s.step(ctx, r, a.AdvanceID, advance.StatusDisbursed, advance.StatusDefaulted, in.ActorID, in.Reason,
			func(a *advance.Advance) {
				now := s.now()
				a.DefaultedAt = &now
				a.RecoveredAmount = o.Returned
				a.LossAmount = o.WrittenOff
			})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn("advance defaulted", "advance_id", out.AdvanceID, "recovered", o.Returned.String(),
		"loss", o.WrittenOff.String(), "reason", in.Reason)
	s.notify(ctx, out, o.WrittenOff)
	return out, nil
}
