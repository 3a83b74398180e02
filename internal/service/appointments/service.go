package appointments

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

// ProviderNotifier tells a provider about a new booking.
type ProviderNotifier interface {
	AppointmentBooked(ctx context.Context, appt domain.Appointment) error
}

type CancellationDispatcher interface {
	DispatchCancellation(ctx context.Context, appt domain.Appointment) error
}

type Service struct {
	appointments store.AppointmentRepository
	users        store.UserRepository
	availability *AvailabilityChecker
	notifier     ProviderNotifier
	dispatcher   CancellationDispatcher
	validate     *validator.Validate
	filesBaseURL string
	location     *time.Location
	now          func() time.Time
}

type Option func(*Service)

// WithFilesBaseURL sets the prefix used to build avatar URLs in listings.
func WithFilesBaseURL(baseURL string) Option {
	return func(s *Service) { s.filesBaseURL = baseURL }
}

// WithLocation sets the zone for dates submitted without a UTC offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(
	appointments store.AppointmentRepository,
	users store.UserRepository,
	notifier ProviderNotifier,
	dispatcher CancellationDispatcher,
	opts ...Option,
) *Service {
	s := &Service{
		appointments: appointments,
		users:        users,
		availability: NewAvailabilityChecker(appointments),
		notifier:     notifier,
		dispatcher:   dispatcher,
		validate:     newValidator(),
		location:     time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	RequesterID    uuid.UUID
	ProviderID     string `json:"provider_id" validate:"required,uuid"`
	Date           string `json:"date" validate:"required,isodate"`
	IdempotencyKey string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	if in.RequesterID == uuid.Nil {
		return domain.Appointment{}, validationError("user_id is required")
	}
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.Date = strings.TrimSpace(in.Date)
	if err := s.validate.Struct(in); err != nil {
		return domain.Appointment{}, validationFailure(err)
	}

	providerID, err := uuid.Parse(in.ProviderID)
	if err != nil {
		return domain.Appointment{}, validationError("provider_id must be a UUID")
	}
	date, err := parseDate(in.Date, s.location)
	if err != nil {
		return domain.Appointment{}, validationError("date must be an ISO 8601 timestamp")
	}

	provider, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, &InvalidProviderError{}
		}
		return domain.Appointment{}, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Provider {
		return domain.Appointment{}, &InvalidProviderError{}
	}

	hourStart := domain.HourStart(date)
	if !hourStart.After(s.now()) {
		return domain.Appointment{}, &PastDateError{}
	}

	appt := domain.Appointment{
		UserID:     in.RequesterID,
		ProviderID: providerID,
		Date:       hourStart,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agenda:create_appointment:"+in.RequesterID.String()+":"+key))

		existing, err := s.appointments.FindByID(ctx, appt.ID)
		switch {
		case err == nil:
			if existing.UserID == appt.UserID && existing.ProviderID == appt.ProviderID && existing.Date.Equal(appt.Date) {
				return existing, nil
			}
			return domain.Appointment{}, &IdempotencyConflictError{}
		case !errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, fmt.Errorf("load appointment: %w", err)
		}
	}

	available, err := s.availability.IsAvailable(ctx, providerID, hourStart)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("check availability: %w", err)
	}
	if !available {
		return domain.Appointment{}, &SlotUnavailableError{}
	}

	created, err := s.appointments.Create(ctx, appt)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, &SlotUnavailableError{}
		}
		return domain.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	if err := s.notifier.AppointmentBooked(ctx, created); err != nil {
		return created, fmt.Errorf("notify provider: %w", err)
	}
	return created, nil
}

func (s *Service) Cancel(ctx context.Context, requesterID, appointmentID uuid.UUID) (domain.Appointment, error) {
	if requesterID == uuid.Nil {
		return domain.Appointment{}, validationError("user_id is required")
	}
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	appt, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Appointment{}, &NotFoundError{}
		}
		return domain.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}

	if appt.UserID != requesterID {
		return domain.Appointment{}, &ForbiddenError{}
	}
	if appt.Canceled() {
		return domain.Appointment{}, &AlreadyCanceledError{}
	}
	now := s.now()
	if !appt.Cancelable(now) {
		return domain.Appointment{}, &TooLateToCancelError{}
	}

	if err := s.appointments.Cancel(ctx, appt.ID, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, &AlreadyCanceledError{}
		}
		return domain.Appointment{}, fmt.Errorf("cancel appointment: %w", err)
	}
	appt.CanceledAt = &now
	appt.UpdatedAt = now

	if err := s.dispatcher.DispatchCancellation(ctx, appt); err != nil {
		return appt, fmt.Errorf("dispatch cancellation: %w", err)
	}
	return appt, nil
}

// Offsetless layouts are read in the service location.
var localDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseDate accepts RFC 3339 timestamps and ISO 8601 local date-times with
// or without seconds.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range localDateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := parseDate(fl.Field().String(), time.UTC)
		return err == nil
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFailure turns the first validator failure into a ValidationError.
func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("Validation fails")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return validationError(fe.Field() + " is required")
	case "uuid":
		return validationError(fe.Field() + " must be a UUID")
	case "isodate":
		return validationError(fe.Field() + " must be an ISO 8601 timestamp")
	default:
		return validationError(fe.Field() + " is invalid")
	}
}
