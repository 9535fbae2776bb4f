package http

import (
	"context"
	"net/http"

	"agri-advance/internal/domain/pool"
	"agri-advance/internal/usecase/liquidity"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PoolService interface {
	CreatePool(ctx context.Context, in liquidity.CreatePoolInput) (*pool.LiquidityPool, error)
	GetPool(ctx context.Context, poolID string) (*pool.LiquidityPool, error)
}

type PoolHandler struct{ svc PoolService }

func NewPoolHandler(svc PoolService) *PoolHandler { return &PoolHandler{svc: svc} }

type createPoolReq struct {
	PoolID   string          `json:"pool_id"  validate:"omitempty,hex32"`
	Name     string          `json:"name"     validate:"required,max=128"`
	Currency string          `json:"currency" validate:"required,len=3"`
	Capital  decimal.Decimal `json:"capital"  validate:"money"`
}

func (h *PoolHandler) Create(c echo.Context) error {
	var req createPoolReq
	if valid, err := bind(c, &req); !valid {
		return err
	}
	p, err := h.svc.CreatePool(c.Request().Context(), liquidity.CreatePoolInput(req))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, p)
}

func (h *PoolHandler) Get(c echo.Context) error {
	p, err := h.svc.GetPool(c.Request().Context(), c.Param("pool_id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, p)
}
