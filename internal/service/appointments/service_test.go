package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/store"
)

type fakeRepo struct {
	createFn    func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	findByIDFn  func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	slotTakenFn func(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error)
	cancelFn    func(ctx context.Context, id uuid.UUID, at time.Time) error
	listFn      func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error)
}

func (f *fakeRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.findByIDFn == nil {
		panic("FindByID not configured")
	}
	return f.findByIDFn(ctx, id)
}

func (f *fakeRepo) SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	if f.slotTakenFn == nil {
		panic("SlotTaken not configured")
	}
	return f.slotTakenFn(ctx, providerID, date)
}

func (f *fakeRepo) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	if f.cancelFn == nil {
		panic("Cancel not configured")
	}
	return f.cancelFn(ctx, id, at)
}

func (f *fakeRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("ListActiveByUser not configured")
	}
	return f.listFn(ctx, userID, limit, offset)
}

type fakeUsers struct {
	users map[uuid.UUID]domain.User
}

func (f *fakeUsers) Create(ctx context.Context, u domain.User) (domain.User, error) {
	panic("not used")
}

func (f *fakeUsers) FindByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

type notifierFunc func(ctx context.Context, appt domain.Appointment) error

func (f notifierFunc) AppointmentBooked(ctx context.Context, appt domain.Appointment) error {
	return f(ctx, appt)
}

type dispatcherFunc func(ctx context.Context, appt domain.Appointment) error

func (f dispatcherFunc) DispatchCancellation(ctx context.Context, appt domain.Appointment) error {
	return f(ctx, appt)
}

var noopNotifier = notifierFunc(func(context.Context, domain.Appointment) error { return nil })

var noopDispatcher = dispatcherFunc(func(context.Context, domain.Appointment) error { return nil })

// memRepo keeps appointments in memory and enforces the active slot rule the
// way the database index does.
type memRepo struct {
	mu   sync.Mutex
	rows []domain.Appointment
	byID map[uuid.UUID]domain.User
}

func (m *memRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderID == appt.ProviderID && r.Date.Equal(appt.Date) && r.CanceledAt == nil {
			return domain.Appointment{}, store.ErrConflict
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	m.rows = append(m.rows, appt)
	return appt, nil
}

func (m *memRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			p, u := m.byID[r.ProviderID], m.byID[r.UserID]
			r.Provider, r.User = &p, &u
			return r, nil
		}
	}
	return domain.Appointment{}, store.ErrNotFound
}

func (m *memRepo) SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ProviderID == providerID && r.Date.Equal(date) && r.CanceledAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id {
			if m.rows[i].CanceledAt != nil {
				return store.ErrConflict
			}
			m.rows[i].CanceledAt = &at
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Appointment
	for _, r := range m.rows {
		if r.UserID == userID && r.CanceledAt == nil {
			p := m.byID[r.ProviderID]
			r.Provider = &p
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

type fakeQueue struct {
	mu   sync.Mutex
	keys []string
	data [][]byte
}

func (q *fakeQueue) Enqueue(ctx context.Context, key string, payload any) (uuid.UUID, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append(q.keys, key)
	q.data = append(q.data, b)
	return uuid.New(), nil
}

var (
	providerID = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	ownerID    = uuid.MustParse("00000000-0000-0000-0000-0000000000b1")
	strangerID = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	plainID    = uuid.MustParse("00000000-0000-0000-0000-0000000000c1")
)

func testUsers() *fakeUsers {
	return &fakeUsers{users: map[uuid.UUID]domain.User{
		providerID: {ID: providerID, Name: "Ana", Email: "ana@example.com", Provider: true},
		ownerID:    {ID: ownerID, Name: "Bruno", Email: "bruno@example.com"},
		strangerID: {ID: strangerID, Name: "Carla", Email: "carla@example.com"},
		plainID:    {ID: plainID, Name: "Davi", Email: "davi@example.com"},
	}}
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestServiceCreate_ValidationErrors(t *testing.T) {
	svc := NewService(&fakeRepo{}, testUsers(), noopNotifier, noopDispatcher)

	cases := []struct {
		name string
		in   CreateInput
		want string
	}{
		{"missing requester", CreateInput{ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z"}, "user_id is required"},
		{"missing provider", CreateInput{RequesterID: ownerID, Date: "2030-01-01T10:00:00Z"}, "provider_id is required"},
		{"bad provider", CreateInput{RequesterID: ownerID, ProviderID: "7", Date: "2030-01-01T10:00:00Z"}, "provider_id must be a UUID"},
		{"missing date", CreateInput{RequesterID: ownerID, ProviderID: providerID.String()}, "date is required"},
		{"bad date", CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "tomorrow"}, "date must be an ISO 8601 timestamp"},
		{"long key", CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z", IdempotencyKey: strings.Repeat("k", 257)}, "idempotency_key too long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T (%v), want *ValidationError", err, err)
			}
			if vErr.Error() != tc.want {
				t.Fatalf("error = %q, want %q", vErr.Error(), tc.want)
			}
		})
	}
}

func TestServiceCreate_InvalidProvider(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	svc := NewService(&fakeRepo{}, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	for _, id := range []uuid.UUID{plainID, uuid.New()} {
		_, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: id.String(), Date: "2030-01-01T10:00:00Z"})
		var pErr *InvalidProviderError
		if !errors.As(err, &pErr) {
			t.Fatalf("provider %s: error = %v, want *InvalidProviderError", id, err)
		}
	}
}

func TestServiceCreate_PastDates(t *testing.T) {
	now := time.Date(2030, 1, 1, 10, 30, 0, 0, time.UTC)
	svc := NewService(&fakeRepo{}, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	// 10:59 truncates to 10:00, which is behind now.
	for _, date := range []string{"2029-12-31T10:00:00Z", "2030-01-01T10:59:00Z", "2030-01-01T07:45:00-03:00"} {
		_, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: date})
		var pErr *PastDateError
		if !errors.As(err, &pErr) {
			t.Fatalf("date %s: error = %v, want *PastDateError", date, err)
		}
	}
}

func TestServiceCreate_ExactlyNowFails(t *testing.T) {
	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(&fakeRepo{}, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	_, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z"})
	var pErr *PastDateError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want *PastDateError", err)
	}
}

func TestServiceCreate_LocalDateForms(t *testing.T) {
	brt := time.FixedZone("BRT", -3*60*60)
	now := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)

	for _, date := range []string{"2025-03-10T14:00", "2025-03-10T14:00:00", "2025-03-10T14:30:15", "2025-03-10T17:00:00Z"} {
		t.Run(date, func(t *testing.T) {
			repo := &memRepo{byID: testUsers().users}
			svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now), WithLocation(brt))

			appt, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: date})
			if err != nil {
				t.Fatalf("Create error: %v", err)
			}
			if !appt.Date.Equal(want) {
				t.Fatalf("date = %v, want %v", appt.Date, want)
			}
		})
	}
}

func TestServiceCreate_LocalDateDefaultsToUTC(t *testing.T) {
	now := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	repo := &memRepo{byID: testUsers().users}
	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	appt, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2025-03-10T14:00"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !appt.Date.Equal(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v", appt.Date)
	}
}

func TestServiceCreate_StoresHourStartAndNotifies(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	var (
		stored   domain.Appointment
		notified domain.Appointment
	)
	repo := &fakeRepo{
		slotTakenFn: func(ctx context.Context, p uuid.UUID, date time.Time) (bool, error) {
			if !date.Equal(time.Date(2030, 1, 1, 13, 0, 0, 0, time.UTC)) {
				t.Fatalf("availability checked at %v", date)
			}
			return false, nil
		},
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			stored = appt
			appt.ID = uuid.New()
			return appt, nil
		},
	}
	notifier := notifierFunc(func(ctx context.Context, appt domain.Appointment) error {
		notified = appt
		return nil
	})
	svc := NewService(repo, testUsers(), notifier, noopDispatcher, fixedClock(now))

	got, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:42:17-03:00"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	want := time.Date(2030, 1, 1, 13, 0, 0, 0, time.UTC)
	if !stored.Date.Equal(want) || stored.Date.Location() != time.UTC {
		t.Fatalf("stored date = %v, want %v", stored.Date, want)
	}
	if stored.CanceledAt != nil {
		t.Fatalf("new appointment must be active")
	}
	if stored.UserID != ownerID || stored.ProviderID != providerID {
		t.Fatalf("stored parties = %s/%s", stored.UserID, stored.ProviderID)
	}
	if notified.ID != got.ID {
		t.Fatalf("notified %s, want %s", notified.ID, got.ID)
	}
}

func TestServiceCreate_SlotTaken(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		slotTakenFn: func(context.Context, uuid.UUID, time.Time) (bool, error) { return true, nil },
	}
	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	_, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z"})
	var sErr *SlotUnavailableError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %v, want *SlotUnavailableError", err)
	}
}

func TestServiceCreate_LostRaceIsSlotUnavailable(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		slotTakenFn: func(context.Context, uuid.UUID, time.Time) (bool, error) { return false, nil },
		createFn: func(context.Context, domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrConflict
		},
	}
	notifier := notifierFunc(func(context.Context, domain.Appointment) error {
		t.Fatalf("must not notify on failed create")
		return nil
	})
	svc := NewService(repo, testUsers(), notifier, noopDispatcher, fixedClock(now))

	_, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z"})
	var sErr *SlotUnavailableError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %v, want *SlotUnavailableError", err)
	}
}

func TestServiceCreate_NotifierFailurePropagates(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	boom := errors.New("boom")
	repo := &fakeRepo{
		slotTakenFn: func(context.Context, uuid.UUID, time.Time) (bool, error) { return false, nil },
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			appt.ID = uuid.New()
			return appt, nil
		},
	}
	notifier := notifierFunc(func(context.Context, domain.Appointment) error { return boom })
	svc := NewService(repo, testUsers(), notifier, noopDispatcher, fixedClock(now))

	got, err := svc.Create(context.Background(), CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z"})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if got.ID == uuid.Nil {
		t.Fatalf("persisted appointment should still be returned")
	}
}

func TestServiceCreate_IdempotencyKey(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := &memRepo{byID: testUsers().users}
	notifications := 0
	notifier := notifierFunc(func(context.Context, domain.Appointment) error {
		notifications++
		return nil
	})
	svc := NewService(repo, testUsers(), notifier, noopDispatcher, fixedClock(now))

	in := CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2030-01-01T10:00:00Z", IdempotencyKey: "abc"}
	first, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	wantID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("agenda:create_appointment:"+ownerID.String()+":abc"))
	if first.ID != wantID {
		t.Fatalf("id = %s, want %s", first.ID, wantID)
	}

	again, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay id = %s, want %s", again.ID, first.ID)
	}
	if notifications != 1 {
		t.Fatalf("notifications = %d, want 1", notifications)
	}

	in.Date = "2030-01-01T11:00:00Z"
	_, err = svc.Create(context.Background(), in)
	var iErr *IdempotencyConflictError
	if !errors.As(err, &iErr) {
		t.Fatalf("error = %v, want *IdempotencyConflictError", err)
	}
}

func TestServiceCancel_Guards(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	canceledAt := now.Add(-time.Hour)
	apptID := uuid.New()

	cases := []struct {
		name      string
		appt      *domain.Appointment
		requester uuid.UUID
		check     func(error) bool
	}{
		{"missing", nil, ownerID, func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }},
		{"stranger", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(5 * time.Hour)}, strangerID, func(err error) bool { var e *ForbiddenError; return errors.As(err, &e) }},
		{"stranger inside window", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(time.Hour)}, strangerID, func(err error) bool { var e *ForbiddenError; return errors.As(err, &e) }},
		{"already canceled", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(5 * time.Hour), CanceledAt: &canceledAt}, ownerID, func(err error) bool { var e *AlreadyCanceledError; return errors.As(err, &e) }},
		{"stranger on canceled", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(5 * time.Hour), CanceledAt: &canceledAt}, strangerID, func(err error) bool { var e *ForbiddenError; return errors.As(err, &e) }},
		{"one hour ahead", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(time.Hour)}, ownerID, func(err error) bool { var e *TooLateToCancelError; return errors.As(err, &e) }},
		{"exactly two hours ahead", &domain.Appointment{ID: apptID, UserID: ownerID, Date: now.Add(2 * time.Hour)}, ownerID, func(err error) bool { var e *TooLateToCancelError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{
				findByIDFn: func(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
					if tc.appt == nil {
						return domain.Appointment{}, store.ErrNotFound
					}
					return *tc.appt, nil
				},
			}
			dispatcher := dispatcherFunc(func(context.Context, domain.Appointment) error {
				t.Fatalf("must not dispatch")
				return nil
			})
			svc := NewService(repo, testUsers(), noopNotifier, dispatcher, fixedClock(now))

			_, err := svc.Cancel(context.Background(), tc.requester, apptID)
			if !tc.check(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestServiceCancel_ThreeHoursAheadSucceeds(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	appt := domain.Appointment{ID: uuid.New(), UserID: ownerID, ProviderID: providerID, Date: now.Add(3 * time.Hour)}

	var canceledWith time.Time
	repo := &fakeRepo{
		findByIDFn: func(context.Context, uuid.UUID) (domain.Appointment, error) { return appt, nil },
		cancelFn: func(ctx context.Context, id uuid.UUID, at time.Time) error {
			canceledWith = at
			return nil
		},
	}
	var dispatched []domain.Appointment
	dispatcher := dispatcherFunc(func(ctx context.Context, a domain.Appointment) error {
		dispatched = append(dispatched, a)
		return nil
	})
	svc := NewService(repo, testUsers(), noopNotifier, dispatcher, fixedClock(now))

	got, err := svc.Cancel(context.Background(), ownerID, appt.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if got.CanceledAt == nil || !got.CanceledAt.Equal(now) || !canceledWith.Equal(now) {
		t.Fatalf("canceled_at = %v (store got %v), want %v", got.CanceledAt, canceledWith, now)
	}
	if len(dispatched) != 1 || dispatched[0].CanceledAt == nil {
		t.Fatalf("dispatched = %+v, want one canceled appointment", dispatched)
	}
}

func TestServiceCancel_LostRaceIsAlreadyCanceled(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	appt := domain.Appointment{ID: uuid.New(), UserID: ownerID, Date: now.Add(5 * time.Hour)}
	repo := &fakeRepo{
		findByIDFn: func(context.Context, uuid.UUID) (domain.Appointment, error) { return appt, nil },
		cancelFn:   func(context.Context, uuid.UUID, time.Time) error { return store.ErrConflict },
	}
	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	_, err := svc.Cancel(context.Background(), ownerID, appt.ID)
	var e *AlreadyCanceledError
	if !errors.As(err, &e) {
		t.Fatalf("error = %v, want *AlreadyCanceledError", err)
	}
}

func TestServiceCancel_SecondCancelKeepsTimestamp(t *testing.T) {
	now := time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)
	repo := &memRepo{byID: testUsers().users}
	created, err := repo.Create(context.Background(), domain.Appointment{UserID: ownerID, ProviderID: providerID, Date: now.Add(6 * time.Hour)})
	if err != nil {
		t.Fatalf("seed error: %v", err)
	}

	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))
	if _, err := svc.Cancel(context.Background(), ownerID, created.ID); err != nil {
		t.Fatalf("first Cancel error: %v", err)
	}

	later := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now.Add(time.Minute)))
	_, err = later.Cancel(context.Background(), ownerID, created.ID)
	var e *AlreadyCanceledError
	if !errors.As(err, &e) {
		t.Fatalf("error = %v, want *AlreadyCanceledError", err)
	}

	stored, _ := repo.FindByID(context.Background(), created.ID)
	if stored.CanceledAt == nil || !stored.CanceledAt.Equal(now) {
		t.Fatalf("canceled_at = %v, want %v", stored.CanceledAt, now)
	}
}

func TestServiceList(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	avatarID := uuid.New()
	users := testUsers()
	p := users.users[providerID]
	p.Avatar = &domain.File{ID: avatarID, Path: "ana.png"}
	users.users[providerID] = p

	repo := &memRepo{byID: users.users}
	ctx := context.Background()
	dates := []time.Time{now.Add(3 * time.Hour), now.Add(-time.Hour), now.Add(time.Hour)}
	for _, d := range dates {
		if _, err := repo.Create(ctx, domain.Appointment{UserID: ownerID, ProviderID: providerID, Date: d}); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}
	canceled, _ := repo.Create(ctx, domain.Appointment{UserID: ownerID, ProviderID: providerID, Date: now.Add(10 * time.Hour)})
	_ = repo.Cancel(ctx, canceled.ID, now)
	_, _ = repo.Create(ctx, domain.Appointment{UserID: strangerID, ProviderID: providerID, Date: now.Add(20 * time.Hour)})

	svc := NewService(repo, users, noopNotifier, noopDispatcher, fixedClock(now), WithFilesBaseURL("http://files.test/"))

	items, err := svc.List(ctx, ownerID, 1)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Date.Before(items[i-1].Date) {
			t.Fatalf("items not ordered by date: %v", items)
		}
	}
	if !items[0].Past || items[0].Cancelable {
		t.Fatalf("past item flags = past:%v cancelable:%v", items[0].Past, items[0].Cancelable)
	}
	if items[1].Past || items[1].Cancelable {
		t.Fatalf("1h-ahead item flags = past:%v cancelable:%v", items[1].Past, items[1].Cancelable)
	}
	if items[2].Past || !items[2].Cancelable {
		t.Fatalf("3h-ahead item flags = past:%v cancelable:%v", items[2].Past, items[2].Cancelable)
	}
	if items[0].Provider.Name != "Ana" || items[0].Provider.Avatar == nil {
		t.Fatalf("provider = %+v", items[0].Provider)
	}
	if items[0].Provider.Avatar.URL != "http://files.test/files/ana.png" {
		t.Fatalf("avatar url = %q", items[0].Provider.Avatar.URL)
	}

	empty, err := svc.List(ctx, ownerID, 3)
	if err != nil {
		t.Fatalf("List page 3 error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("page 3 = %v, want empty slice", empty)
	}
}

func TestServiceList_PageSizeAndOffset(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &fakeRepo{
		listFn: func(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Appointment, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher)

	if _, err := svc.List(context.Background(), ownerID, 4); err != nil {
		t.Fatalf("List error: %v", err)
	}
	if gotLimit != 20 || gotOffset != 60 {
		t.Fatalf("limit/offset = %d/%d, want 20/60", gotLimit, gotOffset)
	}

	_, err := svc.List(context.Background(), ownerID, 0)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("page 0 error = %v, want *ValidationError", err)
	}
}

func TestServiceList_PagesPastTheEnd(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := &memRepo{byID: testUsers().users}
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if _, err := repo.Create(ctx, domain.Appointment{UserID: ownerID, ProviderID: providerID, Date: now.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("seed error: %v", err)
		}
	}
	svc := NewService(repo, testUsers(), noopNotifier, noopDispatcher, fixedClock(now))

	first, err := svc.List(ctx, ownerID, 1)
	if err != nil || len(first) != 5 {
		t.Fatalf("page 1 = %d items, err %v; want 5", len(first), err)
	}

	for _, page := range []int{2, 3, math.MaxInt / PageSize, math.MaxInt/PageSize + 1, math.MaxInt/2 + 1, math.MaxInt} {
		items, err := svc.List(ctx, ownerID, page)
		if err != nil {
			t.Fatalf("page %d error: %v", page, err)
		}
		if items == nil || len(items) != 0 {
			t.Fatalf("page %d = %d items, want empty slice", page, len(items))
		}
	}
}

func TestBookingAndCancellationScenario(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{byID: testUsers().users}
	queue := &fakeQueue{}
	dispatcher := NewJobDispatcher(queue)

	bookedAt := time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, testUsers(), noopNotifier, dispatcher, fixedClock(bookedAt), WithLocation(time.UTC))
	in := CreateInput{RequesterID: ownerID, ProviderID: providerID.String(), Date: "2025-03-10T14:00"}

	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first Create error: %v", err)
	}
	if first.CanceledAt != nil {
		t.Fatalf("new appointment must be active")
	}

	_, err = svc.Create(ctx, in)
	var sErr *SlotUnavailableError
	if !errors.As(err, &sErr) {
		t.Fatalf("second Create error = %v, want *SlotUnavailableError", err)
	}

	cancelAt := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	svc = NewService(repo, testUsers(), noopNotifier, dispatcher, fixedClock(cancelAt))
	canceled, err := svc.Cancel(ctx, ownerID, first.ID)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if canceled.CanceledAt == nil {
		t.Fatalf("canceled_at not set")
	}

	if len(queue.keys) != 1 || queue.keys[0] != "CancellationMail" {
		t.Fatalf("queued keys = %v, want exactly one CancellationMail", queue.keys)
	}
	var payload domain.CancellationMailPayload
	if err := json.Unmarshal(queue.data[0], &payload); err != nil {
		t.Fatalf("payload decode error: %v", err)
	}
	if payload.Appointment.ID != first.ID {
		t.Fatalf("payload id = %s, want %s", payload.Appointment.ID, first.ID)
	}
	if payload.Appointment.Provider.Email != "ana@example.com" || payload.Appointment.User.Name != "Bruno" {
		t.Fatalf("payload parties = %+v", payload.Appointment)
	}
	if payload.Appointment.User.Email != "" {
		t.Fatalf("user email must not be part of the payload")
	}
}
