package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/service/appointments"
)

type createAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

type appointmentResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	ProviderID uuid.UUID      `json:"provider_id"`
	Date       time.Time      `json:"date"`
	CanceledAt *time.Time     `json:"canceled_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Provider   *partyResponse `json:"provider,omitempty"`
	User       *partyResponse `json:"user,omitempty"`
}

type partyResponse struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	resp := appointmentResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		ProviderID: a.ProviderID,
		Date:       a.Date,
		CanceledAt: a.CanceledAt,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if a.Provider != nil {
		resp.Provider = &partyResponse{Name: a.Provider.Name, Email: a.Provider.Email}
	}
	if a.User != nil {
		resp.User = &partyResponse{Name: a.User.Name}
	}
	return resp
}

func (h *Handler) listAppointments(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("page must be a positive integer"))
		}
		page = n
	}

	items, err := h.svc.List(c.Request().Context(), userIDFrom(c), page)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) createAppointment(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("Validation fails"))
	}

	appt, err := h.svc.Create(c.Request().Context(), appointments.CreateInput{
		RequesterID:    userIDFrom(c),
		ProviderID:     req.ProviderID,
		Date:           req.Date,
		IdempotencyKey: c.Request().Header.Get("Idempotency-Key"),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	h.metrics.AppointmentCreated()
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) cancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("appointment id must be a UUID"))
	}

	appt, err := h.svc.Cancel(c.Request().Context(), userIDFrom(c), id)
	if err != nil {
		return h.writeError(c, err)
	}
	h.metrics.AppointmentCanceled()
	return c.JSON(http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) listNotifications(c echo.Context) error {
	rows, err := h.notifications.Recent(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}
