package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/clock"
	"github.com/hackgods/provider-booking/internal/config"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
)

// localDateLayouts are accepted when the client omits the UTC offset; they
// are read in the service's configured location.
var localDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// maxPage is the last page whose offset still fits in an int.
const maxPage = math.MaxInt/PageSize + 1

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

type Service struct {
	repo      Repository
	directory ProviderDirectory
	locker    redisclient.Locker
	publisher Publisher
	avatars   AvatarResolver
	clock     clock.Clock
	loc       *time.Location
	log       zerolog.Logger
}

type Option func(*Service)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithAvatars enables avatar URLs on listings.
func WithAvatars(r AvatarResolver) Option {
	return func(s *Service) { s.avatars = r }
}

func NewService(repo Repository, directory ProviderDirectory, locker redisclient.Locker, publisher Publisher, cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Service{
		repo:      repo,
		directory: directory,
		locker:    locker,
		publisher: publisher,
		clock:     clock.System(),
		loc:       loc,
		log:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAppointment books the hour slot containing in.Date with a provider.
// Checks run in a fixed order and the first failing one decides the error.
// The availability check and the insert run under a per slot lock, and the
// insert itself is atomic against the active slot index.
func (s *Service) CreateAppointment(ctx context.Context, requesterID uuid.UUID, in CreateInput) (*Appointment, error) {
	providerID, requested, err := s.parseCreateInput(in)
	if err != nil {
		return nil, err
	}

	provider, err := s.directory.FindProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.IsProvider {
		return nil, ErrInvalidProvider
	}

	if requesterID == providerID {
		return nil, ErrSelfBooking
	}

	// slots are whole UTC hours so every store agrees on the boundary
	date := clock.StartOfHour(requested.UTC())

	if date.Before(s.clock.Now()) {
		return nil, ErrPastDate
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, slotKey(providerID, date), func(lockCtx context.Context) error {
		// Inside the critical section check for an active appointment on this slot
		existing, err := s.repo.FindActiveConflict(lockCtx, providerID, date)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check slot availability: %w", err)
		}
		if existing != nil {
			return ErrSlotUnavailable
		}

		appt, err := s.repo.InsertAppointment(lockCtx, requesterID, providerID, date)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"provider_id": providerID.String(),
		"user_id":     requesterID.String(),
		"date":        created.Date,
	})

	requester, err := s.directory.GetUserByID(ctx, requesterID)
	if err != nil {
		s.log.Error().Err(err).
			Str("appointment_id", created.ID.String()).
			Msg("load requester for notification, skipping")
		return created, nil
	}

	s.publisher.Publish(ctx, Event{
		Type:        EventAppointmentCreated,
		Appointment: *created,
		User:        requester,
		Provider:    provider,
	})

	return created, nil
}

// ListAppointments returns one page of the requester's active appointments.
func (s *Service) ListAppointments(ctx context.Context, requesterID uuid.UUID, page int) ([]AppointmentDetail, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		return []AppointmentDetail{}, nil
	}

	items, err := s.repo.ListActiveByUser(ctx, requesterID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments by user: %w", err)
	}

	for i := range items {
		s.resolveAvatar(ctx, &items[i])
	}
	return items, nil
}

// GetAppointment loads an appointment visible to the requester, either as
// its owner or as its provider. Anyone else gets ErrNotFound.
func (s *Service) GetAppointment(ctx context.Context, requesterID, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if detail.UserID != requesterID && detail.ProviderID != requesterID {
		return nil, ErrNotFound
	}

	s.resolveAvatar(ctx, detail)
	return detail, nil
}

// ProviderSchedule lists the requester's active bookings for one calendar day
// (YYYY-MM-DD, in the configured location). An empty day means today.
func (s *Service) ProviderSchedule(ctx context.Context, requesterID uuid.UUID, day string) ([]AppointmentDetail, error) {
	provider, err := s.directory.FindProvider(ctx, requesterID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidProvider
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.IsProvider {
		return nil, ErrInvalidProvider
	}

	from := clock.StartOfDay(s.clock.Now(), s.loc)
	if day != "" {
		from, err = time.ParseInLocation(time.DateOnly, day, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be formatted as YYYY-MM-DD", ErrValidation)
		}
	}
	to := from.AddDate(0, 0, 1)

	items, err := s.repo.ListActiveByProvider(ctx, requesterID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider: %w", err)
	}
	return items, nil
}

// CancelAppointment moves an active appointment to cancelled. Only the owner
// may cancel, only once, and only while more than two hours remain.
func (s *Service) CancelAppointment(ctx context.Context, requesterID, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if detail.UserID != requesterID {
		return nil, ErrUnauthorized
	}

	if !detail.Active() {
		return nil, ErrAlreadyCancelled
	}

	now := s.clock.Now()
	if !detail.Cancellable(now) {
		return nil, ErrLateCancellation
	}

	updated, err := s.repo.MarkCancelled(ctx, id, now.UTC())
	if err != nil {
		// lost a race with another cancel of the same row
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}
	detail.Appointment = *updated

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"provider_id":  updated.ProviderID.String(),
		"cancelled_at": updated.CancelledAt,
	})

	s.publisher.Publish(ctx, Event{
		Type:        EventAppointmentCancelled,
		Appointment: *updated,
		User:        detail.User,
		Provider:    detail.Provider,
	})

	return detail, nil
}

func (s *Service) parseCreateInput(in CreateInput) (uuid.UUID, time.Time, error) {
	in.ProviderID = strings.TrimSpace(in.ProviderID)
	in.Date = strings.TrimSpace(in.Date)

	if err := validate.Struct(in); err != nil {
		return uuid.Nil, time.Time{}, validationError(err)
	}

	providerID, err := uuid.Parse(in.ProviderID)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: provider_id must be a valid UUID", ErrValidation)
	}

	date, err := s.parseDate(in.Date)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("%w: date must be an ISO 8601 timestamp", ErrValidation)
	}

	return providerID, date, nil
}

// validationError reports the first failing field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrValidation, fe.Field())
	case "uuid":
		return fmt.Errorf("%w: %s must be a valid UUID", ErrValidation, fe.Field())
	default:
		return fmt.Errorf("%w: %s is invalid", ErrValidation, fe.Field())
	}
}

func (s *Service) parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range localDateLayouts {
		t, err := time.ParseInLocation(layout, raw, s.loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (s *Service) resolveAvatar(ctx context.Context, d *AppointmentDetail) {
	if s.avatars == nil || d.Provider == nil || d.Provider.AvatarKey == nil {
		return
	}
	url, err := s.avatars.URL(ctx, *d.Provider.AvatarKey)
	if err != nil {
		s.log.Warn().Err(err).
			Str("provider_id", d.Provider.ID.String()).
			Msg("resolve provider avatar")
		return
	}
	d.ProviderAvatarURL = url
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}

func slotKey(providerID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("%s:%d", providerID, date.Unix())
}
