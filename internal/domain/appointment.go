package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CancellationWindow is the minimum lead time before an appointment's date
// for the owner to still be allowed to cancel it.
const CancellationWindow = 2 * time.Hour

type Appointment struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID     uuid.UUID  `bun:"user_id,type:uuid,notnull" json:"user_id"`
	ProviderID uuid.UUID  `bun:"provider_id,type:uuid,notnull" json:"provider_id"`
	Date       time.Time  `bun:"date,notnull" json:"date"`
	CanceledAt *time.Time `bun:"canceled_at" json:"canceled_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull" json:"updated_at"`

	Provider *User `bun:"rel:belongs-to,join:provider_id=id" json:"provider,omitempty"`
	User     *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) Canceled() bool {
	return a.CanceledAt != nil
}

// Past reports whether the appointment date is already behind now.
func (a Appointment) Past(now time.Time) bool {
	return a.Date.Before(now)
}

// Cancelable reports whether the owner may still cancel: the appointment is
// active and its date minus the cancellation window is strictly after now.
func (a Appointment) Cancelable(now time.Time) bool {
	if a.Canceled() {
		return false
	}
	return a.Date.Add(-CancellationWindow).After(now)
}

// HourStart truncates t to the start of its hour in UTC.
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
