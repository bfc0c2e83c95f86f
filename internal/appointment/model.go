package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	// PageSize is the fixed page length of appointment listings.
	PageSize = 20

	// CancellationLeadTime is how long before the slot a booking stops being cancellable.
	CancellationLeadTime = 2 * time.Hour
)

type User struct {
	ID         uuid.UUID
	Name       string
	Email      string
	IsProvider bool
	AvatarKey  *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Appointment struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ProviderID  uuid.UUID
	Date        time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.CancelledAt == nil
}

// Cancellable reports whether now is still outside the lead time window.
func (a Appointment) Cancellable(now time.Time) bool {
	return now.Before(a.Date.Add(-CancellationLeadTime))
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	User     *User
	Provider *User

	// ProviderAvatarURL is filled by the service when the provider has an avatar.
	ProviderAvatarURL string
}

// CreateInput is the unvalidated booking request.
type CreateInput struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
	Date       string `json:"date" validate:"required"`
}
