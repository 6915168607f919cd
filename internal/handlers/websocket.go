package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"couple-sync-backend/internal/models"
	"couple-sync-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles the live channel: each connected client holds one
// socket and receives full couple snapshots on every mutation
type WebSocketHandler struct {
	hub           *services.WSHub
	userService   *services.UserService
	coupleService *services.CoupleService
	sync          *services.SyncController
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	coupleService *services.CoupleService,
	sync *services.SyncController,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		userService:   userService,
		coupleService: coupleService,
		sync:          sync,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := h.userService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, conn)

	ctx := r.Context()
	h.sendSnapshot(ctx, userID)
	h.hub.NotifyPartnerStatus(h.partnerFor(ctx, userID), true)
	// Membership can change while the socket is open; the partner is
	// re-derived at disconnect, never reused from connect time. The request
	// context is unreliable once the connection is torn down.
	defer func() {
		h.hub.NotifyPartnerStatus(h.partnerFor(context.Background(), userID), false)
	}()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(userID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "refetch":
			// Client-requested authoritative re-read, same path the push
			// channel triggers
			h.sendSnapshot(ctx, userID)
		default:
			h.sendError(userID, "Unknown message type")
		}
	}
}

// sendSnapshot delivers the user's current snapshot
func (h *WebSocketHandler) sendSnapshot(ctx context.Context, userID string) {
	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotInCouple) && !errors.Is(err, models.ErrNotFound) {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load couple for snapshot")
			return
		}
		couple = nil
	}

	snapshot := h.sync.SnapshotFor(ctx, couple, userID)
	if err := h.hub.SendToUser(userID, services.WSMessage{
		Type: "couple_snapshot",
		Data: snapshot,
	}); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to send snapshot")
	}
}

// partnerFor resolves the user's current partner, "" when unpaired
func (h *WebSocketHandler) partnerFor(ctx context.Context, userID string) string {
	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		return ""
	}
	return couple.PartnerID(userID)
}

func (h *WebSocketHandler) sendError(userID, message string) {
	if err := h.hub.SendToUser(userID, services.WSMessage{
		Type:    "error",
		Message: message,
	}); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Failed to send error message")
	}
}
