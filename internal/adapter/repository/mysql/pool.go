package mysql

import (
	"context"
	"errors"

	poolDomain "agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PoolRepository struct{ db *gorm.DB }

func NewPoolRepository(db *gorm.DB) *PoolRepository { return &PoolRepository{db: db} }

func (r *PoolRepository) Create(ctx context.Context, p *poolDomain.LiquidityPool) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PoolRepository) GetByPoolID(ctx context.Context, poolID string) (*poolDomain.LiquidityPool, error) {
	var out poolDomain.LiquidityPool
	res := r.db.WithContext(ctx).Where("pool_id = ?", poolID).First(&out)
	return poolOrNotFound(&out, res.Error)
}

func (r *PoolRepository) GetByPoolIDForUpdate(ctx context.Context, poolID string) (*poolDomain.LiquidityPool, error) {
	var out poolDomain.LiquidityPool
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pool_id = ?", poolID).
		First(&out)
	return poolOrNotFound(&out, res.Error)
}

func (r *PoolRepository) UpdateBalances(ctx context.Context, p *poolDomain.LiquidityPool) error {
	res := r.db.WithContext(ctx).
		Model(&poolDomain.LiquidityPool{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]any{
			"total_capital":     p.TotalCapital,
			"available_balance": p.AvailableBalance,
			"reserved_balance":  p.ReservedBalance,
			"allocated_balance": p.AllocatedBalance,
			"revenue":           p.Revenue,
			"realized_loss":     p.RealizedLoss,
			"version":           p.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return uow.ErrConcurrencyConflict
	}
	p.Version++
	return nil
}

func poolOrNotFound(p *poolDomain.LiquidityPool, err error) (*poolDomain.LiquidityPool, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, poolDomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
