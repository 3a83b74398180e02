package appointments

import (
	"context"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, key string, payload any) (uuid.UUID, error)
}

// JobDispatcher hands canceled appointments to the job queue under the
// CancellationMail key. It returns once the job is stored.
type JobDispatcher struct {
	queue Enqueuer
}

func NewJobDispatcher(queue Enqueuer) *JobDispatcher {
	return &JobDispatcher{queue: queue}
}

func (d *JobDispatcher) DispatchCancellation(ctx context.Context, appt domain.Appointment) error {
	_, err := d.queue.Enqueue(ctx, domain.JobCancellationMail, CancellationPayload(appt))
	return err
}

func CancellationPayload(appt domain.Appointment) domain.CancellationMailPayload {
	snapshot := domain.CanceledAppointment{
		ID:         appt.ID,
		Date:       appt.Date,
		CanceledAt: appt.CanceledAt,
	}
	if appt.Provider != nil {
		snapshot.Provider = domain.PartySummary{Name: appt.Provider.Name, Email: appt.Provider.Email}
	}
	if appt.User != nil {
		snapshot.User = domain.PartySummary{Name: appt.User.Name}
	}
	return domain.CancellationMailPayload{Appointment: snapshot}
}
