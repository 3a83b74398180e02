package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/locale"
	"agenda/backend/internal/store"
)

// BookingContent is the text a provider sees for a new booking.
func BookingContent(userName, when string) string {
	return fmt.Sprintf("Novo agendamento de %s para o %s", userName, when)
}

// RecentLimit caps how many notifications Recent returns.
const RecentLimit = 20

// Emitter writes in-app notifications for providers.
type Emitter struct {
	notifications store.NotificationRepository
	users         store.UserRepository
	formatter     *locale.Formatter
	log           *slog.Logger
}

func NewEmitter(notifications store.NotificationRepository, users store.UserRepository, formatter *locale.Formatter, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{notifications: notifications, users: users, formatter: formatter, log: log}
}

func (e *Emitter) NotifyProvider(ctx context.Context, providerID uuid.UUID, content string) (domain.Notification, error) {
	n, err := e.notifications.Create(ctx, domain.Notification{UserID: providerID, Content: content})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	e.log.DebugContext(ctx, "provider notified", "provider_id", providerID, "notification_id", n.ID)
	return n, nil
}

// AppointmentBooked notifies the provider of appt, naming the requester.
func (e *Emitter) AppointmentBooked(ctx context.Context, appt domain.Appointment) error {
	requester, err := e.users.FindByID(ctx, appt.UserID)
	if err != nil {
		return fmt.Errorf("load requester %s: %w", appt.UserID, err)
	}
	_, err = e.NotifyProvider(ctx, appt.ProviderID, BookingContent(requester.Name, e.formatter.Format(appt.Date)))
	return err
}

// Recent returns the user's latest notifications, newest first.
func (e *Emitter) Recent(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	rows, err := e.notifications.ListByUser(ctx, userID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if rows == nil {
		rows = []domain.Notification{}
	}
	return rows, nil
}
