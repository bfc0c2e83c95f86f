package appointment

import "context"

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Event is emitted after a booking change has been committed.
type Event struct {
	Type        string
	Appointment Appointment
	User        *User // owner of the booking
	Provider    *User
}

// Publisher delivers committed events to whoever cares about them. Publish
// must not block the caller on delivery and has no way to report failure.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// AvatarResolver turns a stored avatar key into a URL clients can fetch.
type AvatarResolver interface {
	URL(ctx context.Context, key string) (string, error)
}
