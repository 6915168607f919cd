package handlers

import (
	"encoding/json"
	"net/http"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MessageHandler handles last-message and widget-note HTTP requests
type MessageHandler struct {
	messageService *services.MessageService
	coupleService  *services.CoupleService
	userService    *services.UserService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService, coupleService *services.CoupleService, userService *services.UserService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		coupleService:  coupleService,
		userService:    userService,
	}
}

// SendRequest represents the request body for sending a message
type SendRequest struct {
	Text string `json:"text"`
}

// Send handles POST /api/v1/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	msg, err := h.messageService.Send(ctx, couple.ID, userID, user.DisplayName, req.Text)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send message")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, msg)
}

// Widget handles GET /api/v1/widget
func (h *MessageHandler) Widget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	note, err := h.messageService.WidgetNoteFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if note == nil {
		respondError(w, "no widget note", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, note)
}
