package pool

import "errors"

var (
	ErrNotFound                = errors.New("liquidity pool not found")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrReservationExpired      = errors.New("reservation expired")
	ErrInvalidReservationState = errors.New("invalid reservation state")
	ErrInvalidAmount           = errors.New("amount must be positive")
	// ErrImbalanced signals a bookkeeping bug: a move would drive a balance negative.
	ErrImbalanced = errors.New("pool balances out of balance")
)
