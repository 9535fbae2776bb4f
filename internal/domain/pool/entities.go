package pool

import (
	"time"

	"github.com/shopspring/decimal"
)

type LiquidityPool struct {
	ID               uint64          `gorm:"primaryKey;column:id" json:"-"`
	PoolID           string          `gorm:"column:pool_id;size:32;uniqueIndex:ux_pools_pool_id" json:"pool_id"`
	Name             string          `gorm:"column:name;size:128" json:"name"`
	Currency         string          `gorm:"column:currency;size:3" json:"currency"`
	TotalCapital     decimal.Decimal `gorm:"column:total_capital;type:decimal(20,2)" json:"total_capital"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:decimal(20,2)" json:"available_balance"`
	ReservedBalance  decimal.Decimal `gorm:"column:reserved_balance;type:decimal(20,2)" json:"reserved_balance"`
	AllocatedBalance decimal.Decimal `gorm:"column:allocated_balance;type:decimal(20,2)" json:"allocated_balance"`
	Revenue          decimal.Decimal `gorm:"column:revenue;type:decimal(20,2)" json:"revenue"`
	RealizedLoss     decimal.Decimal `gorm:"column:realized_loss;type:decimal(20,2)" json:"realized_loss"`
	// Version is bumped on every balance write; writers compare-and-swap on it.
	Version   uint64    `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LiquidityPool) TableName() string { return "liquidity_pools" }

// Balanced reports whether available + reserved + allocated == totalCapital.
func (p *LiquidityPool) Balanced() bool {
	return p.AvailableBalance.Add(p.ReservedBalance).Add(p.AllocatedBalance).Equal(p.TotalCapital)
}

// Reserve earmarks amount of available capital.
func (p *LiquidityPool) Reserve(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.AvailableBalance.LessThan(amount) {
		return ErrInsufficientLiquidity
	}
	p.AvailableBalance = p.AvailableBalance.Sub(amount)
	p.ReservedBalance = p.ReservedBalance.Add(amount)
	return nil
}

// Allocate moves reserved capital to allocated.
func (p *LiquidityPool) Allocate(amount decimal.Decimal) error {
	if p.ReservedBalance.LessThan(amount) {
		return ErrImbalanced
	}
	p.ReservedBalance = p.ReservedBalance.Sub(amount)
	p.AllocatedBalance = p.AllocatedBalance.Add(amount)
	return nil
}

// Unreserve returns reserved capital to available.
func (p *LiquidityPool) Unreserve(amount decimal.Decimal) error {
	if p.ReservedBalance.LessThan(amount) {
		return ErrImbalanced
	}
	p.ReservedBalance = p.ReservedBalance.Sub(amount)
	p.AvailableBalance = p.AvailableBalance.Add(amount)
	return nil
}

// Deallocate returns allocated capital to available.
func (p *LiquidityPool) Deallocate(amount decimal.Decimal) error {
	if p.AllocatedBalance.LessThan(amount) {
		return ErrImbalanced
	}
	p.AllocatedBalance = p.AllocatedBalance.Sub(amount)
	p.AvailableBalance = p.AvailableBalance.Add(amount)
	return nil
}

// CreditRevenue adds fee/interest income to the pool's capital.
func (p *LiquidityPool) CreditRevenue(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	p.TotalCapital = p.TotalCapital.Add(amount)
	p.AvailableBalance = p.AvailableBalance.Add(amount)
	p.Revenue = p.Revenue.Add(amount)
	return nil
}

// WriteOff removes lost allocated capital from the pool.
func (p *LiquidityPool) WriteOff(amount decimal.Decimal) error {
	if p.AllocatedBalance.LessThan(amount) || p.TotalCapital.LessThan(amount) {
		return ErrImbalanced
	}
	p.AllocatedBalance = p.AllocatedBalance.Sub(amount)
	p.TotalCapital = p.TotalCapital.Sub(amount)
	p.RealizedLoss = p.RealizedLoss.Add(amount)
	return nil
}

type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCommitted ReservationStatus = "COMMITTED"
	ReservationReleased  ReservationStatus = "RELEASED"
	ReservationExpired   ReservationStatus = "EXPIRED"
)

type Reservation struct {
	ID               uint64            `gorm:"primaryKey;column:id" json:"-"`
	ReservationID    string            `gorm:"column:reservation_id;size:32;uniqueIndex:ux_reservations_reservation_id" json:"reservation_id"`
	PoolID           string            `gorm:"column:pool_id;size:32;index" json:"pool_id"`
	AdvanceID        string            `gorm:"column:advance_id;size:32;index" json:"advance_id"`
	Amount           decimal.Decimal   `gorm:"column:amount;type:decimal(20,2)" json:"amount"`
	ReleasedAmount   decimal.Decimal   `gorm:"column:released_amount;type:decimal(20,2)" json:"released_amount"`
	WrittenOffAmount decimal.Decimal   `gorm:"column:written_off_amount;type:decimal(20,2)" json:"written_off_amount"`
	Status           ReservationStatus `gorm:"column:status;size:16;index:idx_reservations_status_expiry" json:"status"`
	ExpiresAt        time.Time         `gorm:"column:expires_at;index:idx_reservations_status_expiry" json:"expires_at"`
	CommittedAt      *time.Time        `gorm:"column:committed_at" json:"committed_at,omitempty"`
	ClosedAt         *time.Time        `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Reservation) TableName() string { return "pool_reservations" }

// Outstanding is the part of the reservation still held as reserved or allocated capital.
func (r *Reservation) Outstanding() decimal.Decimal {
	return r.Amount.Sub(r.ReleasedAmount).Sub(r.WrittenOffAmount)
}

// Open reports whether the reservation still holds capital.
func (r *Reservation) Open() bool {
	return r.Status == ReservationActive || r.Status == ReservationCommitted
}

// Stale reports whether an ACTIVE reservation has outlived its TTL.
func (r *Reservation) Stale(now time.Time) bool {
	return r.Status == ReservationActive && !now.Before(r.ExpiresAt)
}
