package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
)

type JobStore interface {
	Enqueue(ctx context.Context, job domain.Job) (domain.Job, error)
	// Claim leases the oldest due job until now+lease. ok is false when no
	// job is due.
	Claim(ctx context.Context, now time.Time, lease time.Duration) (job domain.Job, ok bool, err error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time) error
	Retry(ctx context.Context, id uuid.UUID, runAt time.Time, reason string) error
	Fail(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
}
