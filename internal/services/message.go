package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const maxMessageRunes = 80

// MessageService handles the ephemeral last-message exchange: a single
// mutable field on the couple document, overwritten on every send
type MessageService struct {
	couples CoupleStore
	widgets WidgetStore
	hub     SnapshotSink
	relay   SignalBumper
}

// NewMessageService creates a new message service
func NewMessageService(couples CoupleStore, widgets WidgetStore, hub SnapshotSink, relay SignalBumper) *MessageService {
	return &MessageService{
		couples: couples,
		widgets: widgets,
		hub:     hub,
		relay:   relay,
	}
}

// Send trims and caps the text, overwrites the couple's last message in
// place (last-writer-wins, no history), records the sender's last-sent row,
// mirrors the message into the partner's widget note and wakes the
// partner's channels. The sender never receives their own echo.
func (s *MessageService) Send(ctx context.Context, coupleID, fromUserID, fromName, text string) (*models.LastMessage, error) {
	trimmed := trimMessage(text)
	if trimmed == "" {
		return nil, models.ErrEmptyMessage
	}

	msg := &models.LastMessage{
		Text:       trimmed,
		FromUserID: fromUserID,
		FromName:   fromName,
		UpdatedAt:  time.Now().UTC(),
	}

	if err := s.couples.SetLastMessage(ctx, coupleID, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	// Local resend/edit continuity; losing it never fails the send
	if err := s.widgets.SaveLastSent(ctx, fromUserID, coupleID, &models.LastSent{
		Text:   trimmed,
		SentAt: msg.UpdatedAt,
	}); err != nil {
		log.Error().Err(err).Str("user_id", fromUserID).Msg("Failed to save last sent")
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to reread couple after send")
		return msg, nil
	}

	// Partner delivery only while matched
	if DeriveState(couple, fromUserID).Kind == StateMatched {
		partnerID := couple.PartnerID(fromUserID)
		s.deliverToPartner(ctx, partnerID, msg)
	}

	s.relay.Bump(ctx, coupleID, "message", fromUserID)

	log.Info().
		Str("user_id", fromUserID).
		Str("couple_id", coupleID).
		Msg("Message sent")

	return msg, nil
}

// LastSentFor returns the user's last-sent record for the resend/edit UI
func (s *MessageService) LastSentFor(ctx context.Context, userID, coupleID string) (*models.LastSent, error) {
	return s.widgets.GetLastSent(ctx, userID, coupleID)
}

// WidgetNoteFor returns the partner message mirrored for the user's widget
func (s *MessageService) WidgetNoteFor(ctx context.Context, userID string) (*models.WidgetNote, error) {
	return s.widgets.GetNote(ctx, userID)
}

func (s *MessageService) deliverToPartner(ctx context.Context, partnerID string, msg *models.LastMessage) {
	if partnerID == "" {
		return
	}

	note := &models.WidgetNote{
		Text:       msg.Text,
		FromUserID: msg.FromUserID,
		FromName:   msg.FromName,
		UpdatedAt:  msg.UpdatedAt,
	}
	if err := s.widgets.SaveNote(ctx, partnerID, note); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to save widget note")
	}

	if err := s.hub.SendToUser(partnerID, WSMessage{
		Type: "message",
		Data: msg,
	}); err != nil {
		log.Debug().
			Err(err).
			Str("partner_id", partnerID).
			Msg("Partner offline, push channel covers message delivery")
	}
}

func trimMessage(text string) string {
	trimmed := []rune(strings.TrimSpace(text))
	if len(trimmed) > maxMessageRunes {
		trimmed = trimmed[:maxMessageRunes]
	}
	return string(trimmed)
}
