package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

const defaultMaxAttempts = 5

// Queue submits jobs for the worker pool. Payloads are stored as JSON.
type Queue struct {
	store       store.JobStore
	maxAttempts int
}

func NewQueue(st store.JobStore, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Queue{store: st, maxAttempts: maxAttempts}
}

func (q *Queue) Enqueue(ctx context.Context, key string, payload any) (uuid.UUID, error) {
	if key == "" {
		return uuid.Nil, fmt.Errorf("jobs: empty key")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode %s payload: %w", key, err)
	}
	job, err := q.store.Enqueue(ctx, domain.Job{
		Key:         key,
		Payload:     string(body),
		MaxAttempts: q.maxAttempts,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s: %w", key, err)
	}
	return job.ID, nil
}
