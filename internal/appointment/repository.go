package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has an active appointment")
)

// ProviderDirectory answers identity questions for the scheduling rules.
type ProviderDirectory interface {
	// FindProvider returns the user with the given id; callers check IsProvider.
	FindProvider(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Repository contains all appointment storage needed by the service.
type Repository interface {
	// For conflict checks. Returns ErrAppointmentNotFound when the slot is free.
	FindActiveConflict(ctx context.Context, providerID uuid.UUID, date time.Time) (*Appointment, error)

	// InsertAppointment is an atomic insert-if-absent on the active
	// (provider, date) pair. It returns ErrSlotTaken when the slot is held.
	InsertAppointment(ctx context.Context, userID, providerID uuid.UUID, date time.Time) (*Appointment, error)

	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// MarkCancelled only touches active rows. ErrAppointmentNotFound means
	// no active appointment with that id exists.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (*Appointment, error)

	// Listings, ordered by date ascending
	ListActiveByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListActiveByProvider(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// UserWriter is used by the seed command to populate the directory.
type UserWriter interface {
	CreateUser(ctx context.Context, u *User) error
}
