package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/provider-booking/internal/appointment"
	redisclient "github.com/hackgods/provider-booking/internal/redis"
)

type CreateAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
}

type PersonResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type AppointmentResponse struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	ProviderID uuid.UUID       `json:"provider_id"`
	Date       time.Time       `json:"date"`
	CanceledAt *time.Time      `json:"canceled_at"`
	CreatedAt  time.Time       `json:"created_at"`
	User       *PersonResponse `json:"user,omitempty"`
	Provider   *PersonResponse `json:"provider,omitempty"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		ProviderID: a.ProviderID,
		Date:       a.Date,
		CanceledAt: a.CancelledAt,
		CreatedAt:  a.CreatedAt,
	}
}

func toDetailResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	if d.User != nil {
		resp.User = &PersonResponse{ID: d.User.ID, Name: d.User.Name}
	}
	if d.Provider != nil {
		resp.Provider = &PersonResponse{
			ID:        d.Provider.ID,
			Name:      d.Provider.Name,
			AvatarURL: d.ProviderAvatarURL,
		}
	}
	return resp
}

func toDetailResponses(items []appointment.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toDetailResponse(d))
	}
	return out
}

func toNotificationResponses(items []redisclient.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NotificationResponse{
			ID:        n.ID,
			Content:   n.Content,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
