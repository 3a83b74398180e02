package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"agenda/backend/internal/auth"
	"agenda/backend/internal/metrics"
)

const userIDKey = "uid"

func requireUser(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, errorBody("Token not provided"))
			}
			uid, err := auth.UserID(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorBody("Token invalid"))
			}
			c.Set(userIDKey, uid)
			return next(c)
		}
	}
}

func userIDFrom(c echo.Context) uuid.UUID {
	uid, _ := c.Get(userIDKey).(uuid.UUID)
	return uid
}

// requestTimeout bounds the handler context when the client sent no deadline
// of its own.
func requestTimeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d <= 0 {
				return next(c)
			}
			req := c.Request()
			if _, ok := req.Context().Deadline(); ok {
				return next(c)
			}
			ctx, cancel := context.WithTimeout(req.Context(), d)
			defer cancel()
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func requestLogger(log *slog.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogRoutePath: true,
		LogLatency:   true,
		LogRemoteIP:  true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			m.ObserveHTTP(v.Method, v.RoutePath, v.Status, v.Latency)
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "http request",
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})
}
