package handlers

import (
	"encoding/json"
	"net/http"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// DeviceHandler handles push subscription registration
type DeviceHandler struct {
	relay *services.PushRelayService
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(relay *services.PushRelayService) *DeviceHandler {
	return &DeviceHandler{relay: relay}
}

// RegisterRequest represents the request body for registering a device
type RegisterRequest struct {
	PushToken string `json:"push_token"`
}

// Register handles POST /api/v1/devices. Registering again replaces the
// previous subscription; an empty token unregisters.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.relay.RegisterDevice(ctx, userID, req.PushToken); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register device")
		respondServiceError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Device registered")
	w.WriteHeader(http.StatusNoContent)
}
