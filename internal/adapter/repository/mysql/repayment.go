package mysql

import (
	"context"
	"errors"

	advanceDomain "agri-advance/internal/domain/advance"

	"gorm.io/gorm"
)

type RepaymentRepository struct{ db *gorm.DB }

func NewRepaymentRepository(db *gorm.DB) *RepaymentRepository { return &RepaymentRepository{db: db} }

func (r *RepaymentRepository) Create(ctx context.Context, p *advanceDomain.Repayment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *RepaymentRepository) GetByReference(ctx context.Context, advanceID, reference string) (*advanceDomain.Repayment, error) {
	var out advanceDomain.Repayment
	res := r.db.WithContext(ctx).
		Where("advance_id = ? AND reference = ?", advanceID, reference).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, advanceDomain.ErrRepaymentNotFound
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (r *RepaymentRepository) ListByAdvanceID(ctx context.Context, advanceID string) ([]advanceDomain.Repayment, error) {
	var out []advanceDomain.Repayment
	err := r.db.WithContext(ctx).
		Where("advance_id = ?", advanceID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
