package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"couple-sync-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// respondServiceError maps business-logic outcomes to actionable messages
// and hides transport failures behind a generic retry message. Raw store
// errors are logged in full, never shown.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		respondError(w, models.ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrQuizNotFound):
		respondError(w, models.ErrQuizNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrCoupleFull):
		respondError(w, models.ErrCoupleFull.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrNotInCouple):
		respondError(w, models.ErrNotInCouple.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrNotMember):
		respondError(w, models.ErrNotMember.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrEmptyMessage):
		respondError(w, models.ErrEmptyMessage.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrAttemptInvalid):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, models.ErrInvalidToken):
		respondError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		log.Error().Err(err).Msg("Request failed")
		respondError(w, "Something went wrong, please try again", http.StatusInternalServerError)
	}
}
