package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/metrics"
	"agenda/backend/internal/service/appointments"
)

type AppointmentService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, requesterID, appointmentID uuid.UUID) (domain.Appointment, error)
	List(ctx context.Context, userID uuid.UUID, page int) ([]appointments.ListItem, error)
}

type NotificationLister interface {
	Recent(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	JWTSecret      string
	RequestTimeout time.Duration
	Limiter        *RateLimiter
	Notifications  NotificationLister
	DB             Pinger
	Metrics        *metrics.Metrics
	Log            *slog.Logger
}

type Handler struct {
	svc           AppointmentService
	notifications NotificationLister
	db            Pinger
	metrics       *metrics.Metrics
	log           *slog.Logger
}

// NewRouter builds the echo instance serving the booking API.
func NewRouter(svc AppointmentService, opts Options) *echo.Echo {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{svc: svc, notifications: opts.Notifications, db: opts.DB, metrics: opts.Metrics, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = h.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger(log, opts.Metrics))
	e.Use(requestTimeout(opts.RequestTimeout))

	e.GET("/healthz", h.health)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics.Handler()))
	}

	g := e.Group("/appointments", requireUser(opts.JWTSecret))
	g.GET("", h.listAppointments)
	if opts.Limiter != nil {
		g.POST("", h.createAppointment, RateLimit(opts.Limiter))
	} else {
		g.POST("", h.createAppointment)
	}
	g.DELETE("/:id", h.cancelAppointment)

	if opts.Notifications != nil {
		e.GET("/notifications", h.listNotifications, requireUser(opts.JWTSecret))
	}

	return e
}

func (h *Handler) health(c echo.Context) error {
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			h.log.Warn("health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
