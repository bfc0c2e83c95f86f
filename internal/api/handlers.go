package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/provider-booking/internal/appointment"
)

const notificationsLimit = 20

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), requester, appointment.CreateInput{
			ProviderID: req.ProviderID,
			Date:       req.Date,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}

		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_page", "page must be an integer")
				return
			}
			page = n
		}

		items, err := svc.ListAppointments(r.Context(), requester, page)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponses(items))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDOrAbort(w, r)
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), requester, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDOrAbort(w, r)
		if !ok {
			return
		}

		detail, err := svc.CancelAppointment(r.Context(), requester, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(*detail))
	}
}

func scheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}

		items, err := svc.ProviderSchedule(r.Context(), requester, r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponses(items))
	}
}

func notificationsHandler(store NotificationReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requester, ok := requesterOrAbort(w, r)
		if !ok {
			return
		}

		items, err := store.Recent(r.Context(), requester, notificationsLimit)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toNotificationResponses(items))
	}
}

func requesterOrAbort(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := RequesterID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_token", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func appointmentIDOrAbort(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
