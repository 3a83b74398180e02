package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"agenda/backend/internal/service/appointments"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// writeError maps service errors to status codes. Anything unrecognized is
// logged and reported as a 500 without details.
func (h *Handler) writeError(c echo.Context, err error) error {
	status, reason := classify(err)
	if status == http.StatusInternalServerError {
		h.log.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
		return c.JSON(status, errorBody("internal error"))
	}
	h.metrics.AppointmentRejected(reason)
	return c.JSON(status, errorBody(err.Error()))
}

func classify(err error) (int, string) {
	var (
		validationErr  *appointments.ValidationError
		providerErr    *appointments.InvalidProviderError
		pastErr        *appointments.PastDateError
		slotErr        *appointments.SlotUnavailableError
		notFoundErr    *appointments.NotFoundError
		canceledErr    *appointments.AlreadyCanceledError
		forbiddenErr   *appointments.ForbiddenError
		tooLateErr     *appointments.TooLateToCancelError
		idempotencyErr *appointments.IdempotencyConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &pastErr):
		return http.StatusBadRequest, "past_date"
	case errors.As(err, &slotErr):
		return http.StatusBadRequest, "slot_unavailable"
	case errors.As(err, &providerErr):
		return http.StatusUnauthorized, "invalid_provider"
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &canceledErr):
		return http.StatusUnauthorized, "already_canceled"
	case errors.As(err, &forbiddenErr):
		return http.StatusUnauthorized, "forbidden"
	case errors.As(err, &tooLateErr):
		return http.StatusUnauthorized, "too_late"
	case errors.As(err, &idempotencyErr):
		return http.StatusConflict, "idempotency_conflict"
	default:
		return http.StatusInternalServerError, ""
	}
}

// httpErrorHandler renders echo's own errors (404 routes, 405, panics caught
// by Recover) with the same body shape as handler errors.
func (h *Handler) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	msg := "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(status)
		}
	} else {
		h.log.Error("unhandled error", "path", c.Path(), "error", err)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, errorBody(msg))
}
