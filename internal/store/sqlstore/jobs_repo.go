package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"agenda/backend/internal/domain"
)

type JobRepo struct {
	db *bun.DB
}

func NewJobRepo(db *bun.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Enqueue(ctx context.Context, job domain.Job) (domain.Job, error) {
	if _, err := r.db.NewInsert().Model(&job).Exec(ctx); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

// Claim leases the oldest due job until now+lease and counts the attempt.
// ok is false when nothing is due.
func (r *JobRepo) Claim(ctx context.Context, now time.Time, lease time.Duration) (domain.Job, bool, error) {
	now = now.UTC()
	var (
		job   domain.Job
		found bool
	)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model(&job).
			Where("j.completed_at IS NULL").
			Where("j.failed_at IS NULL").
			Where("j.run_at <= ?", now).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("j.locked_until IS NULL").WhereOr("j.locked_until <= ?", now)
			}).
			OrderExpr("j.run_at ASC, j.id ASC").
			Limit(1)
		if tx.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE SKIP LOCKED")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}

		until := now.Add(lease)
		_, err := tx.NewUpdate().
			Model((*domain.Job)(nil)).
			Set("attempts = attempts + 1").
			Set("locked_until = ?", until).
			Where("id = ?", job.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		job.Attempts++
		job.LockedUntil = &until
		found = true
		return nil
	})
	if err != nil {
		return domain.Job{}, false, err
	}
	return job, found, nil
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*domain.Job)(nil)).
		Set("completed_at = ?", at.UTC()).
		Set("locked_until = NULL").
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *JobRepo) Retry(ctx context.Context, id uuid.UUID, runAt time.Time, reason string) error {
	_, err := r.db.NewUpdate().
		Model((*domain.Job)(nil)).
		Set("run_at = ?", runAt.UTC()).
		Set("locked_until = NULL").
		Set("last_error = ?", reason).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, at time.Time, reason string) error {
	_, err := r.db.NewUpdate().
		Model((*domain.Job)(nil)).
		Set("failed_at = ?", at.UTC()).
		Set("locked_until = NULL").
		Set("last_error = ?", reason).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *JobRepo) get(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	var job domain.Job
	if err := r.db.NewSelect().Model(&job).Where("j.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}
