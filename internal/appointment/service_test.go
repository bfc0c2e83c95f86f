package appointment

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/provider-booking/internal/clock"
	"github.com/hackgods/provider-booking/internal/config"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
)

// -- Fakes --

type memoryStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*User
	appts  map[uuid.UUID]*Appointment
	events []EventLog

	insertErr     error
	insertEventFn func(EventLog) error
	hideConflicts bool // simulates a reader that lost the race with another insert
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: make(map[uuid.UUID]*User),
		appts: make(map[uuid.UUID]*Appointment),
	}
}

func (m *memoryStore) addUser(provider bool) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{
		ID:         uuid.New(),
		Name:       gofakeit.Name(),
		Email:      gofakeit.Email(),
		IsProvider: provider,
	}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryStore) FindProvider(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.GetUserByID(ctx, id)
}

func (m *memoryStore) FindActiveConflict(_ context.Context, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideConflicts {
		return nil, ErrAppointmentNotFound
	}
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memoryStore) InsertAppointment(_ context.Context, userID, providerID uuid.UUID, date time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Active() {
			return nil, ErrSlotTaken
		}
	}
	a := &Appointment{
		ID:         uuid.New(),
		UserID:     userID,
		ProviderID: providerID,
		Date:       date,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	m.appts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memoryStore) detail(a *Appointment) AppointmentDetail {
	d := AppointmentDetail{Appointment: *a}
	if u, ok := m.users[a.UserID]; ok {
		cp := *u
		d.User = &cp
	}
	if p, ok := m.users[a.ProviderID]; ok {
		cp := *p
		d.Provider = &cp
	}
	return d
}

func (m *memoryStore) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := m.detail(a)
	return &d, nil
}

func (m *memoryStore) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok || !a.Active() {
		return nil, ErrAppointmentNotFound
	}
	a.CancelledAt = &at
	cp := *a
	return &cp, nil
}

func (m *memoryStore) sorted(keep func(*Appointment) bool) []AppointmentDetail {
	var out []AppointmentDetail
	for _, a := range m.appts {
		if keep(a) {
			out = append(out, m.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *memoryStore) ListActiveByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(func(a *Appointment) bool { return a.UserID == userID && a.Active() })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memoryStore) ListActiveByProvider(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(a *Appointment) bool {
		return a.ProviderID == providerID && a.Active() && !a.Date.Before(from) && a.Date.Before(to)
	}), nil
}

func (m *memoryStore) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertEventFn != nil {
		if err := m.insertEventFn(ev); err != nil {
			return err
		}
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryStore) activeCount(providerID uuid.UUID, date time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.Active() {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) all() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fakeAvatars struct{}

func (fakeAvatars) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

// -- Helpers --

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memoryStore
	publisher *recordingPublisher
	svc       *Service
	client    *User
	provider  *User
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := newMemoryStore()
	pub := &recordingPublisher{}
	opts = append([]Option{WithClock(clock.Fixed(testNow))}, opts...)
	svc := NewService(store, store, redisclient.NewLocalLocker(), pub,
		config.Config{Location: time.UTC}, zerolog.Nop(), opts...)

	return &fixture{
		store:     store,
		publisher: pub,
		svc:       svc,
		client:    store.addUser(false),
		provider:  store.addUser(true),
	}
}

func (f *fixture) book(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       at.Format(time.RFC3339),
	})
	require.NoError(t, err)
	return appt
}

// -- Create --

func TestCreateNormalizesToStartOfHour(t *testing.T) {
	f := newFixture(t)

	appt := f.book(t, testNow.Add(26*time.Hour+37*time.Minute+12*time.Second))

	assert.Equal(t, time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC), appt.Date)
	assert.Equal(t, f.client.ID, appt.UserID)
	assert.Equal(t, f.provider.ID, appt.ProviderID)
	assert.Nil(t, appt.CancelledAt)
}

func TestCreateAcceptsOffsetsAndLocalTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.CreateAppointment(ctx, f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       "2026-10-20T10:45:00-03:00",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 13, 0, 0, 0, time.UTC), appt.Date)

	appt, err = f.svc.CreateAppointment(ctx, f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       "2026-10-21T09:15",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC), appt.Date)
}

func TestCreateTruncatesInUTCForHalfHourZones(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	store := newMemoryStore()
	svc := NewService(store, store, redisclient.NewLocalLocker(), &recordingPublisher{},
		config.Config{Location: kolkata}, zerolog.Nop(), WithClock(clock.Fixed(testNow)))
	client, provider := store.addUser(false), store.addUser(true)
	ctx := context.Background()

	appt, err := svc.CreateAppointment(ctx, client.ID, CreateInput{
		ProviderID: provider.ID.String(),
		Date:       "2026-10-20T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC), appt.Date)

	// 15:45 local is 10:15 UTC
	appt, err = svc.CreateAppointment(ctx, client.ID, CreateInput{
		ProviderID: provider.ID.String(),
		Date:       "2026-10-21T15:45",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC), appt.Date)
	assert.Zero(t, appt.Date.Minute())
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	future := testNow.Add(48 * time.Hour).Format(time.RFC3339)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing provider", CreateInput{Date: future}},
		{"provider not a uuid", CreateInput{ProviderID: "42", Date: future}},
		{"missing date", CreateInput{ProviderID: f.provider.ID.String()}},
		{"unparseable date", CreateInput{ProviderID: f.provider.ID.String(), Date: "next tuesday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, f.store.appts)
}

func TestCreateValidationNamesTheField(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{Date: "2026-10-20T10:00:00Z"})
	assert.EqualError(t, err, "validation failed: provider_id is required")

	_, err = f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{ProviderID: "abc", Date: "2026-10-20T10:00:00Z"})
	assert.EqualError(t, err, "validation failed: provider_id must be a valid UUID")
}

func TestCreateInvalidProvider(t *testing.T) {
	f := newFixture(t)
	other := f.store.addUser(false)
	future := testNow.Add(48 * time.Hour).Format(time.RFC3339)

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: other.ID.String(),
		Date:       future,
	})
	assert.ErrorIs(t, err, ErrInvalidProvider)

	_, err = f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: uuid.NewString(),
		Date:       future,
	})
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.Empty(t, f.store.appts)
}

func TestCreateInvalidProviderWinsOverPastDate(t *testing.T) {
	f := newFixture(t)
	other := f.store.addUser(false)

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: other.ID.String(),
		Date:       testNow.Add(-time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrInvalidProvider)
}

func TestCreateSelfBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.provider.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       testNow.Add(48 * time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrSelfBooking)
	assert.Empty(t, f.store.appts)
}

func TestCreatePastDate(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       testNow.Add(-time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrPastDate)
	assert.Empty(t, f.store.appts)
}

func TestCreateCurrentHourIsPastAfterNormalization(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)
	svc := NewService(store, store, redisclient.NewLocalLocker(), &recordingPublisher{},
		config.Config{Location: time.UTC}, zerolog.Nop(), WithClock(clock.Fixed(now)))
	client, provider := store.addUser(false), store.addUser(true)

	// 12:45 truncates to 12:00, which is before 12:30
	_, err := svc.CreateAppointment(context.Background(), client.ID, CreateInput{
		ProviderID: provider.ID.String(),
		Date:       "2026-10-14T12:45:00Z",
	})
	assert.ErrorIs(t, err, ErrPastDate)
}

func TestCreateSlotUnavailable(t *testing.T) {
	f := newFixture(t)
	at := testNow.Add(24 * time.Hour)
	f.book(t, at)

	other := f.store.addUser(false)
	_, err := f.svc.CreateAppointment(context.Background(), other.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       at.Add(20 * time.Minute).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 1, f.store.activeCount(f.provider.ID, at))
}

func TestCreateInsertRaceMapsToSlotUnavailable(t *testing.T) {
	f := newFixture(t)
	at := testNow.Add(24 * time.Hour)
	f.book(t, at)
	f.store.hideConflicts = true

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       at.Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 1, f.store.activeCount(f.provider.ID, at))
}

func TestCreateLockContention(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, store, busyLocker{}, &recordingPublisher{},
		config.Config{Location: time.UTC}, zerolog.Nop(), WithClock(clock.Fixed(testNow)))
	client, provider := store.addUser(false), store.addUser(true)

	_, err := svc.CreateAppointment(context.Background(), client.ID, CreateInput{
		ProviderID: provider.ID.String(),
		Date:       testNow.Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	assert.Empty(t, store.appts)
}

func TestCreateConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	at := testNow.Add(72 * time.Hour)

	const clients = 16
	requesters := make([]*User, clients)
	for i := range requesters {
		requesters[i] = f.store.addUser(false)
	}

	var wg sync.WaitGroup
	errs := make([]error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateAppointment(context.Background(), requesters[i].ID, CreateInput{
				ProviderID: f.provider.ID.String(),
				Date:       at.Format(time.RFC3339),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSlotUnavailable)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.store.activeCount(f.provider.ID, at))
}

func TestCreatePublishesProviderNotification(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(24*time.Hour))

	events := f.publisher.all()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, EventAppointmentCreated, ev.Type)
	assert.Equal(t, appt.ID, ev.Appointment.ID)
	assert.Equal(t, f.provider.ID, ev.Provider.ID)
	assert.Equal(t, f.client.Name, ev.User.Name)

	require.Len(t, f.store.events, 1)
	assert.Equal(t, EventAppointmentCreated, f.store.events[0].EventType)
	assert.Equal(t, appt.ID, *f.store.events[0].AppointmentID)
}

func TestCreateSucceedsWhenEventLogFails(t *testing.T) {
	f := newFixture(t)
	f.store.insertEventFn = func(EventLog) error { return errors.New("event_logs offline") }

	appt := f.book(t, testNow.Add(24*time.Hour))
	assert.NotNil(t, appt)
	assert.Len(t, f.publisher.all(), 1)
}

func TestCreateStoreFailurePropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	f.store.insertErr = boom

	_, err := f.svc.CreateAppointment(context.Background(), f.client.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       testNow.Add(24 * time.Hour).Format(time.RFC3339),
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.publisher.all())
	assert.Empty(t, f.store.events)
}

// -- Cancel --

func TestCancelOutsideLeadTime(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(3*time.Hour))

	detail, err := f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.CancelledAt)
	assert.True(t, detail.CancelledAt.Equal(testNow))

	// never deleted, only marked
	stored, err := f.store.GetAppointmentDetail(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active())

	events := f.publisher.all()
	require.Len(t, events, 2)
	assert.Equal(t, EventAppointmentCancelled, events[1].Type)
	assert.Equal(t, f.provider.Email, events[1].Provider.Email)
}

func TestCancelInsideLeadTime(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(time.Hour))

	_, err := f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	assert.ErrorIs(t, err, ErrLateCancellation)

	stored, _ := f.store.GetAppointmentDetail(context.Background(), appt.ID)
	assert.True(t, stored.Active())
}

func TestCancelExactlyAtCutoffIsLate(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(CancellationLeadTime))

	_, err := f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	assert.ErrorIs(t, err, ErrLateCancellation)
}

func TestCancelByOtherUser(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(5*time.Hour))

	// the provider does not own the booking either
	for _, id := range []uuid.UUID{f.store.addUser(false).ID, f.provider.ID} {
		_, err := f.svc.CancelAppointment(context.Background(), id, appt.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestCancelUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CancelAppointment(context.Background(), f.client.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(5*time.Hour))

	first, err := f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	require.NoError(t, err)
	cancelledAt := *first.CancelledAt

	_, err = f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	stored, _ := f.store.GetAppointmentDetail(context.Background(), appt.ID)
	assert.Equal(t, cancelledAt, *stored.CancelledAt)
	assert.Len(t, f.publisher.all(), 2)
}

func TestCancelledSlotCanBeRebooked(t *testing.T) {
	f := newFixture(t)
	at := testNow.Add(6 * time.Hour)
	appt := f.book(t, at)

	_, err := f.svc.CancelAppointment(context.Background(), f.client.ID, appt.ID)
	require.NoError(t, err)

	other := f.store.addUser(false)
	again, err := f.svc.CreateAppointment(context.Background(), other.ID, CreateInput{
		ProviderID: f.provider.ID.String(),
		Date:       at.Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.NotEqual(t, appt.ID, again.ID)
	assert.Equal(t, 1, f.store.activeCount(f.provider.ID, at))
}

// -- Reads --

func TestListActiveOrderedAndPaginated(t *testing.T) {
	f := newFixture(t, WithAvatars(fakeAvatars{}))
	key := "avatars/provider.png"
	f.store.users[f.provider.ID].AvatarKey = &key

	// book 25 slots in reverse order so sorting is exercised
	var booked []*Appointment
	for i := 25; i >= 1; i-- {
		booked = append(booked, f.book(t, testNow.Add(time.Duration(i)*24*time.Hour)))
	}
	_, err := f.svc.CancelAppointment(context.Background(), f.client.ID, booked[0].ID) // the latest one
	require.NoError(t, err)

	page1, err := f.svc.ListAppointments(context.Background(), f.client.ID, 1)
	require.NoError(t, err)
	require.Len(t, page1, PageSize)
	for i := 1; i < len(page1); i++ {
		assert.True(t, page1[i-1].Date.Before(page1[i].Date))
	}
	assert.Equal(t, "https://cdn.test/avatars/provider.png", page1[0].ProviderAvatarURL)
	assert.Equal(t, f.provider.Name, page1[0].Provider.Name)

	page2, err := f.svc.ListAppointments(context.Background(), f.client.ID, 2)
	require.NoError(t, err)
	require.Len(t, page2, 4)
	for _, d := range page2 {
		assert.NotEqual(t, booked[0].ID, d.ID)
		assert.True(t, d.Active())
	}

	// page < 1 is the first page
	page0, err := f.svc.ListAppointments(context.Background(), f.client.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, page1[0].ID, page0[0].ID)
}

func TestListOnlyOwnAppointments(t *testing.T) {
	f := newFixture(t)
	f.book(t, testNow.Add(24*time.Hour))

	stranger := f.store.addUser(false)
	got, err := f.svc.ListAppointments(context.Background(), stranger.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListPageBeyondOffsetRangeIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.book(t, testNow.Add(24*time.Hour))

	for _, page := range []int{math.MaxInt/PageSize + 2, math.MaxInt} {
		got, err := f.svc.ListAppointments(context.Background(), f.client.ID, page)
		require.NoError(t, err)
		assert.Empty(t, got, "page %d", page)
	}

	last, err := f.svc.ListAppointments(context.Background(), f.client.ID, maxPage)
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestGetAppointmentVisibility(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, testNow.Add(24*time.Hour))

	got, err := f.svc.GetAppointment(context.Background(), f.client.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = f.svc.GetAppointment(context.Background(), f.provider.ID, appt.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetAppointment(context.Background(), f.store.addUser(false).ID, appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProviderSchedule(t *testing.T) {
	f := newFixture(t)
	f.book(t, time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC))
	f.book(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC))
	f.book(t, time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))

	got, err := f.svc.ProviderSchedule(context.Background(), f.provider.ID, "2026-10-15")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 9, got[0].Date.Hour())
	assert.Equal(t, 16, got[1].Date.Hour())
	assert.Equal(t, f.client.Name, got[0].User.Name)

	_, err = f.svc.ProviderSchedule(context.Background(), f.client.ID, "2026-10-15")
	assert.ErrorIs(t, err, ErrInvalidProvider)

	_, err = f.svc.ProviderSchedule(context.Background(), f.provider.ID, "15/10/2026")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProviderScheduleDefaultsToToday(t *testing.T) {
	f := newFixture(t)
	f.book(t, testNow.Add(3*time.Hour))
	f.book(t, testNow.Add(30*time.Hour))

	got, err := f.svc.ProviderSchedule(context.Background(), f.provider.ID, "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
