package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/usecase/allocation"
	"agri-advance/internal/usecase/liquidity"
	"agri-advance/pkg/id"
)

// ProcessRepayment applies a payment fee first, then interest, then principal. Principal returns
// to the pool's available balance and fee plus interest are credited to the pool as revenue.
// Paying the full balance moves the advance to REPAID. A reference already applied to the
// advance is answered with the stored repayment and changes nothing.
func (s *Service) ProcessRepayment(ctx context.Context, in RepaymentInput) (*RepaymentResult, error) {
	if !in.Amount.IsPositive() || !validMoney(in.Amount) {
		return nil, fmt.Errorf("%w: amount must be positive with at most 2 decimals", advance.ErrValidation)
	}
	if in.Method == "" {
		return nil, fmt.Errorf("%w: method is required", advance.ErrValidation)
	}

	a, release, err := s.lockAdvance(ctx, in.AdvanceID)
	if err != nil {
		return nil, err
	}
	defer release()

	if in.Reference != "" {
		prev, err := s.Repayments.GetByReference(ctx, in.AdvanceID, in.Reference)
		switch {
		case err == nil:
			s.log.Info("repayment replayed", "advance_id", in.AdvanceID, "reference", in.Reference)
			return &RepaymentResult{Repayment: *prev, Advance: *a, Replayed: true}, nil
		case !errors.Is(err, advance.ErrRepaymentNotFound):
			return nil, err
		}
	}

	if a.Status != advance.StatusDisbursed {
		return nil, fmt.Errorf("%w: advance %s is %s", advance.ErrNotDisbursed, a.AdvanceID, a.Status)
	}
	if in.Amount.GreaterThan(a.OutstandingTotal()) {
		return nil, fmt.Errorf("%w: paying %s, outstanding %s", advance.ErrAmountExceedsOutstanding, in.Amount, a.OutstandingTotal())
	}
	fee, interest, principal := a.Outstanding()
	split := allocation.Allocate(fee, interest, principal, in.Amount)
	if split.Unapplied.IsPositive() {
		return nil, fmt.Errorf("%w: %s left unapplied", advance.ErrAmountExceedsOutstanding, split.Unapplied)
	}

	var (
		rep advance.Repayment
		out *advance.Advance
	)
	revenue := split.Fee.Add(split.Interest)
	_, err = s.Liquidity.Collect(ctx, a.ReservationID, split.Principal, revenue, func(r uow.Repos, _ liquidity.Outcome) error {
		now := s.now()
		rep = advance.Repayment{
			RepaymentID:        id.NewID32(),
			AdvanceID:          a.AdvanceID,
			Amount:             in.Amount,
			Method:             in.Method,
			Reference:          in.Reference,
			Source:             in.Source,
			AppliedToFee:       split.Fee,
			AppliedToInterest:  split.Interest,
			AppliedToPrincipal: split.Principal,
			CreatedAt:          now,
		}
		if rep.Reference == "" {
			rep.Reference = rep.RepaymentID
		}
		if err := r.Repayments.Create(ctx, &rep); err != nil {
			return err
		}

		to := advance.StatusDisbursed
		if a.RepaidAmount.Add(in.Amount).GreaterThanOrEqual(a.TotalRepayable) {
			to = advance.StatusRepaid
		}
		var err error
		out, err = s.step(ctx, r, a.AdvanceID, advance.StatusDisbursed, to, in.ActorID, "repaid in full",
			func(a *advance.Advance) {
				a.RepaidAmount = a.RepaidAmount.Add(in.Amount)
				a.FeePaid = a.FeePaid.Add(split.Fee)
				a.InterestPaid = a.InterestPaid.Add(split.Interest)
				a.PrincipalPaid = a.PrincipalPaid.Add(split.Principal)
				if to == advance.StatusRepaid {
					a.RepaidAt = &now
				}
			})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Repayment()
	s.log.Info("repayment applied", "advance_id", out.AdvanceID, "amount", in.Amount.String(),
		"fee", split.Fee.String(), "interest", split.Interest.String(), "principal", split.Principal.String(),
		"repaid", out.RepaidAmount.String())
	if out.Status == advance.StatusRepaid {
		s.notify(ctx, out, out.RepaidAmount)
	}
	return &RepaymentResult{Repayment: rep, Advance: *out}, nil
}
