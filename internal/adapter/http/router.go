package http

import (
	"agri-advance/internal/domain/advance"

	"github.com/labstack/echo/v4"
)

type Routes struct {
	Health   *Handler
	Advances *AdvanceHandler
	Pools    *PoolHandler
	// Auth guards every business route; Idempotency wraps mutating ones. Either may be nil.
	Auth        echo.MiddlewareFunc
	Idempotency echo.MiddlewareFunc
}

func chain(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mw))
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register mounts every API route on e.
func Register(e *echo.Echo, r Routes) {
	e.GET("/health", r.Health.Health)

	api := e.Group("", chain(r.Auth)...)
	write := chain(r.Idempotency)
	ops := append(chain(RequireRole(RoleOperator)), write...)

	a := r.Advances
	api.POST("/advances/quote", a.Quote)
	api.POST("/advances", a.Request, write...)
	api.GET("/advances/verification-pending", a.PendingVerification, RequireRole(RoleOperator))
	api.GET("/advances/:advance_id", a.Get)
	api.GET("/advances/:advance_id/history", a.History, RequireRole(RoleOperator))
	api.POST("/advances/:advance_id/approve", a.Transition(advance.StatusApproved), ops...)
	api.POST("/advances/:advance_id/reject", a.Transition(advance.StatusRejected), ops...)
	api.POST("/advances/:advance_id/disburse", a.Transition(advance.StatusDisbursed), ops...)
	api.POST("/advances/:advance_id/default", a.Default, ops...)
	api.POST("/advances/:advance_id/repayments", a.Repay, ops...)
	api.GET("/farmers/:farmer_id/advances", a.ByFarmer)

	api.POST("/pools", r.Pools.Create, ops...)
	api.GET("/pools/:pool_id", r.Pools.Get, RequireRole(RoleOperator))
}
