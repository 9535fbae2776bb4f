package mysql

import (
	"context"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"

	"gorm.io/gorm"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

var _ uow.UnitOfWork = (*GormUoW)(nil)

func reposFor(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Advances:     &AdvanceRepository{db: tx},
		History:      &HistoryRepository{db: tx},
		Repayments:   &RepaymentRepository{db: tx},
		Pools:        &PoolRepository{db: tx},
		Reservations: &ReservationRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposFor(tx))
	})
}

func (u *GormUoW) WithinAdvanceTx(ctx context.Context, advanceID string, fn func(r uow.Repos, a *advance.Advance) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		// lock the advance row up-front to prevent races
		a, err := r.Advances.GetByAdvanceIDForUpdate(ctx, advanceID)
		if err != nil {
			return err
		}
		return fn(r, a)
	})
}

func (u *GormUoW) WithinPoolTx(ctx context.Context, poolID string, fn func(r uow.Repos, p *pool.LiquidityPool) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		p, err := r.Pools.GetByPoolIDForUpdate(ctx, poolID)
		if err != nil {
			return err
		}
		return fn(r, p)
	})
}
