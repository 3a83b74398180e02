package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type AvailabilityChecker struct {
	repo store.AppointmentRepository
}

func NewAvailabilityChecker(repo store.AppointmentRepository) *AvailabilityChecker {
	return &AvailabilityChecker{repo: repo}
}

// IsAvailable reports whether no active appointment holds the provider's
// slot at date's hour.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	taken, err := c.repo.SlotTaken(ctx, providerID, domain.HourStart(date))
	if err != nil {
		return false, err
	}
	return !taken, nil
}
