package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if _, err := r.db.NewInsert().Model(&u).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, store.ErrConflict
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Relation("Avatar").
		Where("u.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

// CreateFile stores avatar metadata. Uploads themselves live outside this service.
func (r *UserRepo) CreateFile(ctx context.Context, f domain.File) (domain.File, error) {
	if _, err := r.db.NewInsert().Model(&f).Exec(ctx); err != nil {
		return domain.File{}, err
	}
	return f, nil
}
