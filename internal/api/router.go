package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/provider-booking/internal/appointment"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
)

// AppointmentService is the booking surface the handlers need.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, requesterID uuid.UUID, in appointment.CreateInput) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, requesterID uuid.UUID, page int) ([]appointment.AppointmentDetail, error)
	GetAppointment(ctx context.Context, requesterID, id uuid.UUID) (*appointment.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, requesterID, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ProviderSchedule(ctx context.Context, requesterID uuid.UUID, day string) ([]appointment.AppointmentDetail, error)
}

// NotificationReader lists a user's in-app notifications, newest first.
type NotificationReader interface {
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]redisclient.Notification, error)
}

type RouterConfig struct {
	Service       AppointmentService
	Notifications NotificationReader
	Checks        []Check
	JWTSecret     string
	Limiter       *RateLimiter // optional; limits POST /appointments per client IP
	TrustProxy    bool         // only behind a proxy that overwrites forwarded headers
	Logger        zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Route("/appointments", func(r chi.Router) {
			r.With(RateLimitMiddleware(cfg.Limiter)).Post("/", createAppointmentHandler(cfg.Service))
			r.Get("/", listAppointmentsHandler(cfg.Service))
			r.Get("/{id}", getAppointmentHandler(cfg.Service))
			r.Delete("/{id}", cancelAppointmentHandler(cfg.Service))
		})

		r.Get("/schedule", scheduleHandler(cfg.Service))
		r.Get("/notifications", notificationsHandler(cfg.Notifications))
	})

	return r
}
