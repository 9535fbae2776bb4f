package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/usecase/liquidity"
	"agri-advance/pkg/id"

	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.NewFromInt(365)

// CalculateTerms prices an advance for a farmer's order. It never writes.
func (s *Service) CalculateTerms(ctx context.Context, in QuoteInput) (*Quote, error) {
	if in.FarmerID == "" || in.OrderID == "" {
		return nil, fmt.Errorf("%w: farmer_id and order_id are required", advance.ErrValidation)
	}
	if in.RequestedAmount != nil && (!in.RequestedAmount.IsPositive() || !validMoney(*in.RequestedAmount)) {
		return nil, fmt.Errorf("%w: requested_amount must be positive with at most 2 decimals", advance.ErrValidation)
	}

	order, err := s.checkOrder(ctx, in.FarmerID, in.OrderID)
	if err != nil {
		return nil, err
	}

	requested := decimal.Zero
	if in.RequestedAmount != nil {
		requested = *in.RequestedAmount
	}
	elig, err := s.eligibility(ctx, in.FarmerID, requested, in.OrderID)
	if err != nil {
		return nil, err
	}

	ceiling := elig.CreditLimit
	if s.Policy.MaxAdvanceRatio.IsPositive() {
		ceiling = decimal.Min(ceiling, order.ReceivableAmount.Mul(s.Policy.MaxAdvanceRatio).Truncate(2))
	}

	principal := ceiling
	if in.RequestedAmount != nil {
		if requested.GreaterThan(elig.CreditLimit) {
			return nil, fmt.Errorf("%w: requested %s, limit %s", advance.ErrAmountExceedsLimit, requested, elig.CreditLimit)
		}
		if requested.GreaterThan(ceiling) {
			return nil, fmt.Errorf("%w: requested %s, order allows %s", advance.ErrAmountExceedsLimit, requested, ceiling)
		}
		principal = requested
	}
	if !principal.IsPositive() {
		return nil, fmt.Errorf("%w: order %s leaves nothing to advance", advance.ErrInvalidOrder, in.OrderID)
	}

	rate := elig.Rate
	if !rate.IsPositive() {
		rate = s.Policy.DefaultRate
	}
	feeRate, termDays := s.Policy.terms(elig.RiskTier)
	fee := principal.Mul(feeRate).Truncate(2)
	interest := principal.Mul(rate).Mul(decimal.NewFromInt(int64(termDays))).Div(daysPerYear).Truncate(2)

	return &Quote{
		FarmerID:         in.FarmerID,
		OrderID:          in.OrderID,
		Principal:        principal,
		Fee:              fee,
		InterestRate:     rate,
		InterestAmount:   interest,
		TotalRepayable:   principal.Add(fee).Add(interest),
		RiskTier:         elig.RiskTier,
		CreditLimit:      elig.CreditLimit,
		TermDays:         termDays,
		DueDate:          s.now().AddDate(0, 0, termDays),
		ReceivableAmount: order.ReceivableAmount,
	}, nil
}

func (s *Service) checkOrder(ctx context.Context, farmerID, orderID string) (*advance.Order, error) {
	order, err := s.Orders.GetOrder(ctx, orderID)
	switch {
	case errors.Is(err, advance.ErrOrderNotFound):
		return nil, fmt.Errorf("%w: order %s not found", advance.ErrInvalidOrder, orderID)
	case err != nil:
		return nil, fmt.Errorf("read order %s: %w", orderID, err)
	}
	if order.FarmerID != farmerID {
		return nil, fmt.Errorf("%w: order %s does not belong to farmer %s", advance.ErrInvalidOrder, orderID, farmerID)
	}
	if !order.AdvanceEligible() {
		return nil, fmt.Errorf("%w: order %s is %s", advance.ErrInvalidOrder, orderID, order.Status)
	}
	open, err := s.Advances.GetOpenByOrderID(ctx, orderID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: order %s already backs advance %s", advance.ErrInvalidOrder, orderID, open.AdvanceID)
	case !isNotFound(err):
		return nil, err
	}
	return order, nil
}

// eligibility fails closed: an error, a timeout or a denial all mean not eligible.
func (s *Service) eligibility(ctx context.Context, farmerID string, requested decimal.Decimal, orderID string) (*advance.Eligibility, error) {
	gctx, cancel := context.WithTimeout(ctx, s.gateTimeout)
	defer cancel()

	elig, err := s.Gate.GetEligibility(gctx, farmerID, requested, orderID)
	if err != nil {
		s.log.Warn("eligibility gate failed, denying", "farmer_id", farmerID, "order_id", orderID, "error", err)
		return nil, fmt.Errorf("%w: eligibility unavailable", advance.ErrNotEligible)
	}
	if elig == nil || !elig.Approved {
		reason := "denied"
		if elig != nil && elig.Reason != "" {
			reason = elig.Reason
		}
		return nil, fmt.Errorf("%w: %s", advance.ErrNotEligible, reason)
	}
	if !elig.CreditLimit.IsPositive() {
		return nil, fmt.Errorf("%w: no credit limit", advance.ErrNotEligible)
	}
	return elig, nil
}

// RequestAdvance quotes the advance, then creates it in REQUESTED together with its pool
// reservation in one transaction. When the pool is short nothing is persisted.
func (s *Service) RequestAdvance(ctx context.Context, in RequestInput) (*advance.Advance, error) {
	q, err := s.CalculateTerms(ctx, QuoteInput{FarmerID: in.FarmerID, OrderID: in.OrderID, RequestedAmount: in.RequestedAmount})
	if err != nil {
		return nil, err
	}

	var created *advance.Advance
	advanceID := id.NewID32()
	_, err = s.Liquidity.Reserve(ctx, liquidity.ReserveInput{PoolID: s.PoolID, AdvanceID: advanceID, Amount: q.Principal},
		func(r uow.Repos, o liquidity.Outcome) error {
			// the pool lock orders concurrent requests; re-check the order under it
			open, err := r.Advances.GetOpenByOrderID(ctx, in.OrderID)
			switch {
			case err == nil:
				return fmt.Errorf("%w: order %s already backs advance %s", advance.ErrInvalidOrder, in.OrderID, open.AdvanceID)
			case !isNotFound(err):
				return err
			}

			now := s.now()
			a := &advance.Advance{
				AdvanceID:       advanceID,
				FarmerID:        in.FarmerID,
				OrderID:         in.OrderID,
				PoolID:          s.PoolID,
				ReservationID:   o.Reservation.ReservationID,
				RiskTier:        q.RiskTier,
				PrincipalAmount: q.Principal,
				FeeAmount:       q.Fee,
				InterestRate:    q.InterestRate,
				InterestAmount:  q.InterestAmount,
				TotalRepayable:  q.TotalRepayable,
				DisbursedAmount: decimal.Zero,
				RepaidAmount:    decimal.Zero,
				FeePaid:         decimal.Zero,
				InterestPaid:    decimal.Zero,
				PrincipalPaid:   decimal.Zero,
				RecoveredAmount: decimal.Zero,
				LossAmount:      decimal.Zero,
				Status:          advance.StatusRequested,
				DueDate:         q.DueDate,
				CreatedAt:       now,
			}
			if err := r.Advances.Create(ctx, a); err != nil {
				return err
			}
			created = a
			return r.History.Append(ctx, &advance.StatusHistory{
				AdvanceID: advanceID,
				ToStatus:  advance.StatusRequested,
				ActorID:   in.ActorID,
				Reason:    "requested",
				CreatedAt: now,
			})
		})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(advance.StatusRequested))
	s.log.Info("advance requested",
		"advance_id", created.AdvanceID, "farmer_id", created.FarmerID, "order_id", created.OrderID,
		"principal", created.PrincipalAmount.String(), "total_repayable", created.TotalRepayable.String())
	return created, nil
}
