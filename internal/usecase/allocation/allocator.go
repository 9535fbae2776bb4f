// Package allocation splits a repayment across what an advance still owes.
package allocation

import "github.com/shopspring/decimal"

// Allocation is the result of applying one payment.
type Allocation struct {
	Fee       decimal.Decimal `json:"applied_to_fee"`
	Interest  decimal.Decimal `json:"applied_to_interest"`
	Principal decimal.Decimal `json:"applied_to_principal"`
	// Unapplied is the part of the payment that exceeds everything outstanding.
	Unapplied decimal.Decimal `json:"unapplied"`
}

// Applied is Fee + Interest + Principal.
func (a Allocation) Applied() decimal.Decimal {
	return a.Fee.Add(a.Interest).Add(a.Principal)
}

// Allocate applies payment greedily to fee, then interest, then principal.
// Fee and interest take whole cents only; whatever is left after truncation flows to
// principal, so Applied() + Unapplied always equals payment exactly.
func Allocate(outstandingFee, outstandingInterest, outstandingPrincipal, payment decimal.Decimal) Allocation {
	out := Allocation{Fee: decimal.Zero, Interest: decimal.Zero, Principal: decimal.Zero, Unapplied: decimal.Zero}
	if !payment.IsPositive() {
		out.Unapplied = payment
		return out
	}
	remaining := payment

	out.Fee = take(remaining, outstandingFee).Truncate(2)
	remaining = remaining.Sub(out.Fee)

	out.Interest = take(remaining, outstandingInterest).Truncate(2)
	remaining = remaining.Sub(out.Interest)

	out.Principal = take(remaining, outstandingPrincipal)
	out.Unapplied = remaining.Sub(out.Principal)
	return out
}

func take(available, owed decimal.Decimal) decimal.Decimal {
	if !owed.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(available, owed)
}
