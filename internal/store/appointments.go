package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

type AppointmentRepository interface {
	// Create inserts appt. It returns ErrConflict when another active
	// appointment already holds the same provider and date.
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	// FindByID loads the appointment with its provider and user relations.
	FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error)
	// Cancel sets canceled_at on an active appointment. It returns ErrConflict
	// when the appointment was already canceled.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error
	ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error)
}

type UserRepository interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.User, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error)
}
