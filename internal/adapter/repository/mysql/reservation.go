package mysql

import (
	"context"
	"errors"
	"time"

	poolDomain "agri-advance/internal/domain/pool"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationRepository struct{ db *gorm.DB }

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, res *poolDomain.Reservation) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *ReservationRepository) Save(ctx context.Context, res *poolDomain.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

func (r *ReservationRepository) GetByReservationID(ctx context.Context, reservationID string) (*poolDomain.Reservation, error) {
	var out poolDomain.Reservation
	res := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).First(&out)
	return reservationOrNotFound(&out, res.Error)
}

func (r *ReservationRepository) GetByReservationIDForUpdate(ctx context.Context, reservationID string) (*poolDomain.Reservation, error) {
	var out poolDomain.Reservation
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("reservation_id = ?", reservationID).
		First(&out)
	return reservationOrNotFound(&out, res.Error)
}

func (r *ReservationRepository) GetOpenByAdvanceID(ctx context.Context, advanceID string) (*poolDomain.Reservation, error) {
	var out poolDomain.Reservation
	res := r.db.WithContext(ctx).
		Where("advance_id = ? AND status IN ?", advanceID,
			[]poolDomain.ReservationStatus{poolDomain.ReservationActive, poolDomain.ReservationCommitted}).
		First(&out)
	return reservationOrNotFound(&out, res.Error)
}

// ListStale returns ACTIVE reservations whose expiry is at or before now, oldest first.
func (r *ReservationRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]poolDomain.Reservation, error) {
	var out []poolDomain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", poolDomain.ReservationActive, now).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func reservationOrNotFound(res *poolDomain.Reservation, err error) (*poolDomain.Reservation, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, poolDomain.ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}
