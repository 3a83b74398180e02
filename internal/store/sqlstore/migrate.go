package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
)

var models = []any{
	(*domain.File)(nil),
	(*domain.User)(nil),
	(*domain.Appointment)(nil),
	(*domain.Notification)(nil),
	(*domain.Job)(nil),
}

// appointments_active_slot is what keeps two concurrent bookings from holding
// the same provider hour; the availability check in the service is only a
// fast path in front of it.
var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_active_slot ON appointments (provider_id, "date") WHERE canceled_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS appointments_user_date ON appointments (user_id, "date")`,
	`CREATE INDEX IF NOT EXISTS notifications_user_created ON notifications (user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS jobs_due ON jobs (run_at) WHERE completed_at IS NULL AND failed_at IS NULL`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, m := range models {
			if _, err := tx.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
				return fmt.Errorf("create table for %T: %w", m, err)
			}
		}
		for _, stmt := range indexes {
			if _, err := tx.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("create index: %w", err)
			}
		}
		return nil
	})
}
