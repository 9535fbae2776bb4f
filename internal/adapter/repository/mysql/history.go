package mysql

import (
	"context"

	advanceDomain "agri-advance/internal/domain/advance"

	"gorm.io/gorm"
)

type HistoryRepository struct{ db *gorm.DB }

func NewHistoryRepository(db *gorm.DB) *HistoryRepository { return &HistoryRepository{db: db} }

func (r *HistoryRepository) Append(ctx context.Context, h *advanceDomain.StatusHistory) error {
	return r.db.WithContext(ctx).Create(h).Error
}

// ListByAdvanceID returns transitions oldest first.
func (r *HistoryRepository) ListByAdvanceID(ctx context.Context, advanceID string) ([]advanceDomain.StatusHistory, error) {
	var out []advanceDomain.StatusHistory
	err := r.db.WithContext(ctx).
		Where("advance_id = ?", advanceID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
