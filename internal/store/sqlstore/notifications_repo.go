package sqlstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
)

type NotificationRepo struct {
	db *bun.DB
}

func NewNotificationRepo(db *bun.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if _, err := r.db.NewInsert().Model(&n).Exec(ctx); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Notification, error) {
	var rows []domain.Notification
	err := r.db.NewSelect().
		Model(&rows).
		Where("n.user_id = ?", userID).
		OrderExpr("n.created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
