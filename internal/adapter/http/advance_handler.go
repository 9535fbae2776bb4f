package http

import (
	"context"
	"net/http"
	"strconv"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/usecase/lifecycle"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// AdvanceService is what the advance routes need from the lifecycle service.
type AdvanceService interface {
	CalculateTerms(ctx context.Context, in lifecycle.QuoteInput) (*lifecycle.Quote, error)
	RequestAdvance(ctx context.Context, in lifecycle.RequestInput) (*advance.Advance, error)
	TransitionStatus(ctx context.Context, in lifecycle.TransitionInput) (*advance.Advance, error)
	MarkAsDefaulted(ctx context.Context, in lifecycle.DefaultInput) (*advance.Advance, error)
	ProcessRepayment(ctx context.Context, in lifecycle.RepaymentInput) (*lifecycle.RepaymentResult, error)
	GetAdvanceDetails(ctx context.Context, advanceID string) (*lifecycle.Details, error)
	GetFarmerAdvances(ctx context.Context, farmerID string, status advance.Status) ([]advance.Advance, error)
	GetStatusHistory(ctx context.Context, advanceID string) ([]advance.StatusHistory, error)
	ListPendingVerification(ctx context.Context, limit int) ([]advance.Advance, error)
}

type AdvanceHandler struct{ svc AdvanceService }

func NewAdvanceHandler(svc AdvanceService) *AdvanceHandler { return &AdvanceHandler{svc: svc} }

type quoteReq struct {
	FarmerID        string           `json:"farmer_id"        validate:"required,max=64"`
	OrderID         string           `json:"order_id"         validate:"required,max=64"`
	RequestedAmount *decimal.Decimal `json:"requested_amount" validate:"omitempty,money"`
}

type transitionReq struct {
	Reason                string `json:"reason"                 validate:"max=500"`
	DisbursementReference string `json:"disbursement_reference" validate:"max=64"`
}

type defaultReq struct {
	Reason          string          `json:"reason"           validate:"required,max=500"`
	RecoveredAmount decimal.Decimal `json:"recovered_amount" validate:"money0"`
}

type repaymentReq struct {
	Amount    decimal.Decimal `json:"amount"    validate:"money"`
	Method    string          `json:"method"    validate:"required,oneof=mobile_money bank_transfer cash offset"`
	Reference string          `json:"reference" validate:"max=64"`
	Source    string          `json:"source"    validate:"max=64"`
}

// bind decodes and validates the body; it writes the error response itself and reports false.
func bind(c echo.Context, req any) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return false, validationFailed(c, err)
	}
	return true, nil
}

// ownFarmer lets farmers act only on themselves; operators act on anyone.
func ownFarmer(c echo.Context, farmerID string) bool {
	return actorRole(c) != RoleFarmer || actorID(c) == farmerID
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, Result{Error: &ErrorBody{Code: "Forbidden", Message: "farmers may only act on their own advances"}})
}

func (h *AdvanceHandler) Quote(c echo.Context) error {
	var req quoteReq
	if valid, err := bind(c, &req); !valid {
		return err
	}
	if !ownFarmer(c, req.FarmerID) {
		return forbidden(c)
	}
	q, err := h.svc.CalculateTerms(c.Request().Context(), lifecycle.QuoteInput{
		FarmerID:        req.FarmerID,
		OrderID:         req.OrderID,
		RequestedAmount: req.RequestedAmount,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, q)
}

func (h *AdvanceHandler) Request(c echo.Context) error {
	var req quoteReq
	if valid, err := bind(c, &req); !valid {
		return err
	}
	if !ownFarmer(c, req.FarmerID) {
		return forbidden(c)
	}
	a, err := h.svc.RequestAdvance(c.Request().Context(), lifecycle.RequestInput{
		FarmerID:        req.FarmerID,
		OrderID:         req.OrderID,
		RequestedAmount: req.RequestedAmount,
		ActorID:         actorID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, a)
}

func (h *AdvanceHandler) Get(c echo.Context) error {
	d, err := h.svc.GetAdvanceDetails(c.Request().Context(), c.Param("advance_id"))
	if err != nil {
		return fail(c, err)
	}
	if !ownFarmer(c, d.Advance.FarmerID) {
		return forbidden(c)
	}
	return ok(c, http.StatusOK, d)
}

func (h *AdvanceHandler) History(c echo.Context) error {
	hist, err := h.svc.GetStatusHistory(c.Request().Context(), c.Param("advance_id"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, hist)
}

// Transition returns a handler that moves an advance to target.
func (h *AdvanceHandler) Transition(target advance.Status) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req transitionReq
		if valid, err := bind(c, &req); !valid {
			return err
		}
		a, err := h.svc.TransitionStatus(c.Request().Context(), lifecycle.TransitionInput{
			AdvanceID:             c.Param("advance_id"),
			Target:                target,
			ActorID:               actorID(c),
			Reason:                req.Reason,
			DisbursementReference: req.DisbursementReference,
		})
		if err != nil {
			return fail(c, err)
		}
		return ok(c, http.StatusOK, a)
	}
}

func (h *AdvanceHandler) Default(c echo.Context) error {
	var req defaultReq
	if valid, err := bind(c, &req); !valid {
		return err
	}
	a, err := h.svc.MarkAsDefaulted(c.Request().Context(), lifecycle.DefaultInput{
		AdvanceID:       c.Param("advance_id"),
		Reason:          req.Reason,
		RecoveredAmount: req.RecoveredAmount,
		ActorID:         actorID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, a)
}

func (h *AdvanceHandler) Repay(c echo.Context) error {
	var req repaymentReq
	if valid, err := bind(c, &req); !valid {
		return err
	}
	res, err := h.svc.ProcessRepayment(c.Request().Context(), lifecycle.RepaymentInput{
		AdvanceID: c.Param("advance_id"),
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		Source:    req.Source,
		ActorID:   actorID(c),
	})
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return ok(c, status, res)
}

func (h *AdvanceHandler) ByFarmer(c echo.Context) error {
	farmerID := c.Param("farmer_id")
	if !ownFarmer(c, farmerID) {
		return forbidden(c)
	}
	status := advance.Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return badRequest(c, "unknown status filter")
	}
	list, err := h.svc.GetFarmerAdvances(c.Request().Context(), farmerID, status)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, list)
}

func (h *AdvanceHandler) PendingVerification(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return badRequest(c, "limit must be a positive integer")
		}
		limit = n
	}
	list, err := h.svc.ListPendingVerification(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, list)
}
