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
	"agenda/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create inserts appt while holding the provider's slot lock. An active
// appointment already holding the slot yields store.ErrConflict.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:         appt.ID,
		UserID:     appt.UserID,
		ProviderID: appt.ProviderID,
		Date:       appt.Date.UTC(),
		CanceledAt: appt.CanceledAt,
		CreatedAt:  appt.CreatedAt,
		UpdatedAt:  appt.UpdatedAt,
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderSlot(ctx, tx, m.ProviderID, m.Date); err != nil {
			return err
		}
		taken, err := slotTaken(ctx, tx, m.ProviderID, m.Date)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrConflict
		}
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.db.NewSelect().
		Model(&m).
		Relation("Provider").
		Relation("User").
		Where("a.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	return slotTaken(ctx, r.db, providerID, date.UTC())
}

// Cancel marks the appointment canceled only if it is still active, so two
// racing cancellations cannot both succeed.
func (r *AppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Set("canceled_at = ?", at.UTC()).
		Set("updated_at = ?", at.UTC()).
		Where("id = ?", id).
		Where("canceled_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *AppointmentRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Relation("Provider").
		Relation("Provider.Avatar").
		Where("a.user_id = ?", userID).
		Where("a.canceled_at IS NULL").
		OrderExpr("a.date ASC, a.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func slotTaken(ctx context.Context, db bun.IDB, providerID uuid.UUID, date time.Time) (bool, error) {
	return db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("a.provider_id = ?", providerID).
		Where("a.date = ?", date).
		Where("a.canceled_at IS NULL").
		Exists(ctx)
}

// lockProviderSlot serializes bookings for one provider hour on Postgres.
// SQLite runs on a single connection, which already serializes writers.
func lockProviderSlot(ctx context.Context, tx bun.Tx, providerID uuid.UUID, date time.Time) error {
	if tx.Dialect().Name() != dialect.PG {
		return nil
	}
	key := providerID.String() + "|" + date.UTC().Format(time.RFC3339)
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}
