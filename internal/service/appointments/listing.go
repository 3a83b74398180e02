package appointments

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const PageSize = 20

type ListItem struct {
	ID         uuid.UUID       `json:"id"`
	Date       time.Time       `json:"date"`
	Past       bool            `json:"past"`
	Cancelable bool            `json:"cancelable"`
	Provider   ProviderSummary `json:"provider"`
}

type ProviderSummary struct {
	ID     uuid.UUID      `json:"id"`
	Name   string         `json:"name"`
	Avatar *AvatarSummary `json:"avatar"`
}

type AvatarSummary struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// List returns one page of the user's active appointments, soonest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page int) ([]ListItem, error) {
	if userID == uuid.Nil {
		return nil, validationError("user_id is required")
	}
	if page < 1 {
		return nil, validationError("page must be a positive integer")
	}
	// Any page whose offset would overflow is past the end of the data.
	if page > math.MaxInt/PageSize {
		return []ListItem{}, nil
	}

	rows, err := s.appointments.ListActiveByUser(ctx, userID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	now := s.now()
	items := make([]ListItem, 0, len(rows))
	for _, a := range rows {
		item := ListItem{
			ID:         a.ID,
			Date:       a.Date,
			Past:       a.Past(now),
			Cancelable: a.Cancelable(now),
			Provider:   ProviderSummary{ID: a.ProviderID},
		}
		if p := a.Provider; p != nil {
			item.Provider.Name = p.Name
			if p.Avatar != nil && p.Avatar.ID != uuid.Nil {
				item.Provider.Avatar = &AvatarSummary{
					Path: p.Avatar.Path,
					URL:  p.Avatar.URL(s.filesBaseURL),
				}
			}
		}
		items = append(items, item)
	}
	return items, nil
}
