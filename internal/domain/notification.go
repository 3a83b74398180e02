package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Content   string    `bun:"content,notnull" json:"content"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull" json:"user"`
	Read      bool      `bun:"read,notnull,default:false" json:"read"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (n *Notification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if n.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			n.ID = id
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}
