package lifecycle

import (
	"context"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/uow"
	"agri-advance/internal/usecase/liquidity"
)

const (
	systemActor          = "system"
	reasonReservationTTL = "reservation expired"
)

// RejectExpired is a liquidity.ExpiryHook. It rejects the REQUESTED or APPROVED advance that owned
// the expired reservation, which frees its order for a new request. Advances that already moved on
// or point at another reservation are left alone.
func RejectExpired(ctx context.Context, r uow.Repos, o liquidity.Outcome) error {
	res := o.Reservation
	if res == nil || res.AdvanceID == "" {
		return nil
	}
	a, err := r.Advances.GetByAdvanceIDForUpdate(ctx, res.AdvanceID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if a.ReservationID != res.ReservationID {
		return nil
	}
	if a.Status != advance.StatusRequested && a.Status != advance.StatusApproved {
		return nil
	}
	at := res.ExpiresAt
	if res.ClosedAt != nil {
		at = *res.ClosedAt
	}
	_, err = applyStep(ctx, r, a, a.Status, advance.StatusRejected, systemActor, reasonReservationTTL, at,
		func(a *advance.Advance) { a.RejectedAt = &at })
	return err
}

var _ liquidity.ExpiryHook = RejectExpired
