package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Handler keys of the deferred jobs the booking core submits.
const (
	JobCancellationMail        = "CancellationMail"
	JobAppointmentNotification = "AppointmentNotification"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	Key         string     `bun:"key,notnull"`
	Payload     string     `bun:"payload,type:jsonb,notnull"`
	Attempts    int        `bun:"attempts,notnull,default:0"`
	MaxAttempts int        `bun:"max_attempts,notnull"`
	RunAt       time.Time  `bun:"run_at,notnull"`
	LockedUntil *time.Time `bun:"locked_until"`
	LastError   string     `bun:"last_error"`
	CompletedAt *time.Time `bun:"completed_at"`
	FailedAt    *time.Time `bun:"failed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
}

func (j *Job) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		now := time.Now().UTC()
		if j.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			j.ID = id
		}
		if j.CreatedAt.IsZero() {
			j.CreatedAt = now
		}
		if j.RunAt.IsZero() {
			j.RunAt = now
		}
	}
	return nil
}

// CancellationMailPayload is the body of a CancellationMail job.
type CancellationMailPayload struct {
	Appointment CanceledAppointment `json:"appointment"`
}

type CanceledAppointment struct {
	ID         uuid.UUID    `json:"id"`
	Date       time.Time    `json:"date"`
	CanceledAt *time.Time   `json:"canceled_at"`
	Provider   PartySummary `json:"provider"`
	User       PartySummary `json:"user"`
}

type PartySummary struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AppointmentNotificationPayload is the body of an AppointmentNotification job.
type AppointmentNotificationPayload struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	UserID        uuid.UUID `json:"user_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Date          time.Time `json:"date"`
}
