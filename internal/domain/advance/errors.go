package advance

import "errors"

var (
	ErrValidation               = errors.New("validation error")
	ErrNotFound                 = errors.New("advance not found")
	ErrNotEligible              = errors.New("farmer not eligible for an advance")
	ErrInvalidOrder             = errors.New("order is not advance-eligible")
	ErrOrderNotFound            = errors.New("order not found")
	ErrAmountExceedsLimit       = errors.New("requested amount exceeds credit limit")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrAmountExceedsOutstanding = errors.New("amount exceeds outstanding balance")
	ErrNotDisbursed             = errors.New("advance is not disbursed")
	ErrRepaymentNotFound        = errors.New("repayment not found")
)
