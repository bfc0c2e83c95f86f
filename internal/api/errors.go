package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/provider-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleServiceError maps booking errors to a status and an error code.
// Anything unrecognised is a 500 and its text is not echoed to the client.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrInvalidProvider):
		writeError(w, http.StatusBadRequest, "invalid_provider", err.Error())
	case errors.Is(err, appointment.ErrSelfBooking):
		writeError(w, http.StatusBadRequest, "self_booking", err.Error())
	case errors.Is(err, appointment.ErrPastDate):
		writeError(w, http.StatusBadRequest, "past_date", err.Error())
	case errors.Is(err, appointment.ErrLateCancellation):
		writeError(w, http.StatusBadRequest, "late_cancellation", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
