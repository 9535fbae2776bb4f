package mysql

import (
	"context"
	"errors"

	advanceDomain "agri-advance/internal/domain/advance"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalStatuses = []advanceDomain.Status{
	advanceDomain.StatusRepaid,
	advanceDomain.StatusRejected,
	advanceDomain.StatusDefaulted,
}

type AdvanceRepository struct{ db *gorm.DB }

func NewAdvanceRepository(db *gorm.DB) *AdvanceRepository { return &AdvanceRepository{db: db} }

func (r *AdvanceRepository) Create(ctx context.Context, a *advanceDomain.Advance) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AdvanceRepository) Save(ctx context.Context, a *advanceDomain.Advance) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AdvanceRepository) GetByAdvanceID(ctx context.Context, advanceID string) (*advanceDomain.Advance, error) {
	var out advanceDomain.Advance
	res := r.db.WithContext(ctx).Where("advance_id = ?", advanceID).First(&out)
	return advanceOrNotFound(&out, res.Error)
}

func (r *AdvanceRepository) GetByAdvanceIDForUpdate(ctx context.Context, advanceID string) (*advanceDomain.Advance, error) {
	var out advanceDomain.Advance
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("advance_id = ?", advanceID).
		First(&out)
	return advanceOrNotFound(&out, res.Error)
}

func (r *AdvanceRepository) GetOpenByOrderID(ctx context.Context, orderID string) (*advanceDomain.Advance, error) {
	var out advanceDomain.Advance
	res := r.db.WithContext(ctx).
		Where("order_id = ? AND status NOT IN ?", orderID, terminalStatuses).
		Order("created_at DESC, id DESC").
		First(&out)
	return advanceOrNotFound(&out, res.Error)
}

// ListByFarmerID returns the farmer's advances, newest first. An empty status matches all.
func (r *AdvanceRepository) ListByFarmerID(ctx context.Context, farmerID string, status advanceDomain.Status) ([]advanceDomain.Advance, error) {
	q := r.db.WithContext(ctx).Where("farmer_id = ?", farmerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []advanceDomain.Advance
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AdvanceRepository) ListPendingVerification(ctx context.Context, limit int) ([]advanceDomain.Advance, error) {
	var out []advanceDomain.Advance
	err := r.db.WithContext(ctx).
		Where("verification_pending = ?", true).
		Order("disbursed_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateVerification touches only the proof columns so it never races balance-bearing fields.
func (r *AdvanceRepository) UpdateVerification(ctx context.Context, advanceID string, status advanceDomain.VerificationStatus, pending bool, proofHash, txRef string) error {
	res := r.db.WithContext(ctx).
		Model(&advanceDomain.Advance{}).
		Where("advance_id = ?", advanceID).
		Updates(map[string]any{
			"verification_status":  status,
			"verification_pending": pending,
			"proof_hash":           proofHash,
			"proof_tx_ref":         txRef,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return advanceDomain.ErrNotFound
	}
	return nil
}

func advanceOrNotFound(a *advanceDomain.Advance, err error) (*advanceDomain.Advance, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, advanceDomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
