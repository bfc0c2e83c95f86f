// Package notify fans committed booking events out to the notification and
// mail sinks without holding up the request that produced them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/mail"
)

const SubjectCancellation = "Agendamento cancelado"

// NotificationSink stores an in-app notification for a user.
type NotificationSink interface {
	Send(ctx context.Context, targetUserID uuid.UUID, content string) error
}

// MailSink accepts a message for later delivery.
type MailSink interface {
	Send(ctx context.Context, m mail.Message) error
}

// Dispatcher implements appointment.Publisher. Each event is handled on its
// own goroutine with a context detached from the caller, bounded by timeout.
// Failures are logged and dropped.
type Dispatcher struct {
	notifications NotificationSink
	mail          MailSink
	loc           *time.Location
	timeout       time.Duration
	log           zerolog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(notifications NotificationSink, mail MailSink, loc *time.Location, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifications: notifications,
		mail:          mail,
		loc:           loc,
		timeout:       timeout,
		log:           logger,
	}
}

func (d *Dispatcher) Publish(ctx context.Context, ev appointment.Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.deliver(sendCtx, ev); err != nil {
			d.log.Error().Err(err).
				Str("event", ev.Type).
				Str("appointment_id", ev.Appointment.ID.String()).
				Msg("dispatch event")
			return
		}
		d.log.Debug().
			Str("event", ev.Type).
			Str("appointment_id", ev.Appointment.ID.String()).
			Msg("event dispatched")
	}()
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev appointment.Event) error {
	if ev.Provider == nil {
		return fmt.Errorf("event %s has no provider", ev.Type)
	}

	switch ev.Type {
	case appointment.EventAppointmentCreated:
		return d.notifications.Send(ctx, ev.Provider.ID, CreatedContent(ev, d.loc))

	case appointment.EventAppointmentCancelled:
		return d.mail.Send(ctx, CancellationMail(ev, d.loc))

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// CreatedContent is the in-app text a provider sees for a new booking.
func CreatedContent(ev appointment.Event, loc *time.Location) string {
	name := "um cliente"
	if ev.User != nil {
		name = ev.User.Name
	}
	return fmt.Sprintf("Novo agendamento de %s para %s", name, FormatDate(ev.Appointment.Date, loc))
}

// CancellationMail addresses the provider of a cancelled booking.
func CancellationMail(ev appointment.Event, loc *time.Location) mail.Message {
	userName := ""
	if ev.User != nil {
		userName = ev.User.Name
	}
	return mail.Message{
		ToName:   ev.Provider.Name,
		ToEmail:  ev.Provider.Email,
		Subject:  SubjectCancellation,
		Template: mail.TemplateCancellation,
		Context: map[string]any{
			"provider": ev.Provider.Name,
			"user":     userName,
			"date":     FormatDate(ev.Appointment.Date, loc),
		},
	}
}
