package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name      string     `bun:"name,notnull" json:"name"`
	Email     string     `bun:"email,notnull,unique" json:"email"`
	Provider  bool       `bun:"provider,notnull,default:false" json:"provider"`
	AvatarID  *uuid.UUID `bun:"avatar_id,type:uuid" json:"avatar_id,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time  `bun:"updated_at,notnull" json:"updated_at"`

	Avatar *File `bun:"rel:belongs-to,join:avatar_id=id" json:"avatar,omitempty"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if u.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			u.ID = id
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		u.UpdatedAt = now
	}
	return nil
}

type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Path      string    `bun:"path,notnull" json:"path"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

func (f *File) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if f.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			f.ID = id
		}
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

// URL is the public address of the file under baseURL.
func (f File) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/files/" + f.Path
}
