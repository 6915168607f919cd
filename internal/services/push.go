package services

import (
	"context"
	"fmt"

	"couple-sync-backend/internal/config"
	"couple-sync-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// PushSender delivers one notification to a device token
type PushSender interface {
	Send(ctx context.Context, deviceToken, eventType string) error
}

// APNSSender implements PushSender over Apple Push Notification service
type APNSSender struct {
	client     *apns2.Client
	topic      string
	alertTitle string
	alertBody  string
	category   string
}

// NewAPNSSender creates an APNs sender using token-based authentication
func NewAPNSSender(apnsCfg config.APNSConfig, pushCfg config.PushConfig) (*APNSSender, error) {
	authKey, err := token.AuthKeyFromFile(apnsCfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   apnsCfg.KeyID,
		TeamID:  apnsCfg.TeamID,
	})
	if apnsCfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNSSender{
		client:     client,
		topic:      apnsCfg.Topic,
		alertTitle: pushCfg.AlertTitle,
		alertBody:  pushCfg.AlertBody,
		category:   pushCfg.Category,
	}, nil
}

// Send pushes a visible alert carrying the event type. The client refetches
// the couple document on receipt.
func (s *APNSSender) Send(ctx context.Context, deviceToken, eventType string) error {
	p := payload.NewPayload().
		AlertTitle(s.alertTitle).
		AlertBody(s.alertBody).
		Sound("default").
		Badge(1).
		Category(s.category).
		Custom("event", eventType)

	res, err := s.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected push: %s", res.Reason)
	}
	return nil
}

// PushRelayService is the push relay: it keeps one signal record per couple
// and bumps it on every mutation so the partner's device wakes even when
// their live channel is suspended
type PushRelayService struct {
	signals SignalStore
	couples CoupleStore
	users   UserStore
	sender  PushSender
}

// NewPushRelayService creates a new push relay service. A nil sender keeps
// the signal bookkeeping without device delivery.
func NewPushRelayService(signals SignalStore, couples CoupleStore, users UserStore, sender PushSender) *PushRelayService {
	return &PushRelayService{
		signals: signals,
		couples: couples,
		users:   users,
		sender:  sender,
	}
}

// EnsureSignal creates the couple's signal record if missing. Idempotent.
func (s *PushRelayService) EnsureSignal(ctx context.Context, coupleID string) (*models.CoupleSignal, error) {
	return s.signals.Ensure(ctx, coupleID)
}

// Bump touches the signal record and notifies every registered member device
// except the actor's. Fire-and-forget: failures log and never propagate, the
// primary operation has already succeeded.
func (s *PushRelayService) Bump(ctx context.Context, coupleID, eventType, exceptUserID string) {
	if err := s.signals.Bump(ctx, coupleID, eventType); err != nil {
		log.Error().
			Err(err).
			Str("couple_id", coupleID).
			Str("event", eventType).
			Msg("Failed to bump signal record")
		return
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to load couple for push delivery")
		return
	}

	for _, memberID := range couple.MemberIDs {
		if memberID == exceptUserID {
			continue
		}
		s.notifyDevice(ctx, memberID, eventType)
	}
}

// DeleteSignal removes the signal record after the couple is destroyed
func (s *PushRelayService) DeleteSignal(ctx context.Context, coupleID string) {
	if err := s.signals.Delete(ctx, coupleID); err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to delete signal record")
	}
}

// RegisterDevice records a user's device token, replacing any previous
// subscription for that user
func (s *PushRelayService) RegisterDevice(ctx context.Context, userID, pushToken string) error {
	if pushToken == "" {
		return s.users.UpdatePushToken(ctx, userID, nil)
	}
	return s.users.UpdatePushToken(ctx, userID, &pushToken)
}

func (s *PushRelayService) notifyDevice(ctx context.Context, userID, eventType string) {
	if s.sender == nil {
		return
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user for push delivery")
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return
	}

	if err := s.sender.Send(ctx, *user.PushToken, eventType); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("event", eventType).
			Msg("Failed to deliver push")
		return
	}

	log.Debug().Str("user_id", userID).Str("event", eventType).Msg("Push delivered")
}
