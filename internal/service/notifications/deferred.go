package notifications

import (
	"context"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/jobs"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, key string, payload any) (uuid.UUID, error)
}

// Deferred moves booking notifications off the request path: it enqueues an
// AppointmentNotification job and the worker runs the Emitter.
type Deferred struct {
	queue Enqueuer
}

func NewDeferred(queue Enqueuer) *Deferred {
	return &Deferred{queue: queue}
}

func (d *Deferred) AppointmentBooked(ctx context.Context, appt domain.Appointment) error {
	_, err := d.queue.Enqueue(ctx, domain.JobAppointmentNotification, domain.AppointmentNotificationPayload{
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		ProviderID:    appt.ProviderID,
		Date:          appt.Date,
	})
	return err
}

// BookingJob handles AppointmentNotification jobs.
func BookingJob(e *Emitter) jobs.Handler {
	return jobs.HandlerFunc(func(ctx context.Context, payload []byte) error {
		p, err := jobs.DecodeJSON[domain.AppointmentNotificationPayload](payload)
		if err != nil {
			return err
		}
		return e.AppointmentBooked(ctx, domain.Appointment{
			ID:         p.AppointmentID,
			UserID:     p.UserID,
			ProviderID: p.ProviderID,
			Date:       p.Date,
		})
	})
}
