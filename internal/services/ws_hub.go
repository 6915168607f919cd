package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Event   string      `json:"event,omitempty"`
	Online  *bool       `json:"online,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WSHub manages the live channel: one WebSocket connection per user.
// Every couple mutation fans a full authoritative snapshot out through it.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a WebSocket connection for a user. Registering twice
// replaces the previous connection rather than leaking it.
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's connection. A no-op when not registered.
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.connections[userID]
	if !ok || current != conn {
		return
	}
	current.Close()
	delete(h.connections, userID)

	log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID, conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user holds a live connection
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// NotifyPartnerStatus tells the partner this user came online or went away
func (h *WSHub) NotifyPartnerStatus(partnerID string, online bool) {
	if partnerID == "" {
		return
	}

	message := WSMessage{
		Type:   "partner_status",
		Online: &online,
	}

	if err := h.SendToUser(partnerID, message); err != nil {
		log.Debug().
			Err(err).
			Str("partner_id", partnerID).
			Msg("Partner not reachable for status update")
	}
}
