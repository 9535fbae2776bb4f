package http

import (
	"errors"
	"log/slog"
	"net/http"

	"agri-advance/internal/domain/advance"
	"agri-advance/internal/domain/pool"
	"agri-advance/internal/domain/uow"

	"github.com/labstack/echo/v4"
)

// Result is the envelope of every API response.
type Result struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// order matters: the first match wins
var errorTable = []errorMapping{
	{advance.ErrValidation, http.StatusUnprocessableEntity, "ValidationError"},
	{pool.ErrInvalidAmount, http.StatusUnprocessableEntity, "ValidationError"},
	{advance.ErrNotEligible, http.StatusForbidden, "NotEligible"},
	{advance.ErrInvalidOrder, http.StatusUnprocessableEntity, "InvalidOrder"},
	{advance.ErrAmountExceedsLimit, http.StatusUnprocessableEntity, "AmountExceedsLimit"},
	{pool.ErrInsufficientLiquidity, http.StatusConflict, "InsufficientLiquidity"},
	{advance.ErrInvalidStatusTransition, http.StatusConflict, "InvalidStatusTransition"},
	{advance.ErrAmountExceedsOutstanding, http.StatusUnprocessableEntity, "AmountExceedsOutstanding"},
	{pool.ErrReservationExpired, http.StatusConflict, "ReservationExpired"},
	{pool.ErrInvalidReservationState, http.StatusConflict, "InvalidReservationState"},
	{advance.ErrNotFound, http.StatusNotFound, "AdvanceNotFound"},
	{pool.ErrNotFound, http.StatusNotFound, "PoolNotFound"},
	{pool.ErrReservationNotFound, http.StatusNotFound, "ReservationNotFound"},
	{advance.ErrNotDisbursed, http.StatusConflict, "AdvanceNotDisbursed"},
	{uow.ErrConcurrencyConflict, http.StatusConflict, "ConcurrencyConflict"},
}

// statusFor maps a domain error to its HTTP status and public code.
func statusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "InternalError"
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, Result{Success: true, Data: data})
}

func fail(c echo.Context, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.JSON(status, Result{Error: &ErrorBody{Code: code, Message: msg}})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, Result{Error: &ErrorBody{Code: "BadRequest", Message: msg}})
}

func validationFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, Result{Error: &ErrorBody{
		Code:    "ValidationError",
		Message: "validation failed",
		Details: ToFieldErrors(err),
	}})
}
