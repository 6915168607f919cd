package services

import (
	"context"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// SignalRelay extends SignalBumper with the signal record's lifecycle:
// creation when a couple enters the pairing flow and teardown when the
// couple is destroyed
type SignalRelay interface {
	SignalBumper
	EnsureSignal(ctx context.Context, coupleID string) (*models.CoupleSignal, error)
	DeleteSignal(ctx context.Context, coupleID string)
}

// AnniversaryInfo carries the day-count figures the widget renders,
// recomputed on every snapshot from the stored UTC day boundary
type AnniversaryInfo struct {
	DaysSince     int `json:"days_since"`
	FullYears     int `json:"full_years"`
	DaysUntilNext int `json:"days_until_next"`
}

// CoupleSnapshot is the full authoritative payload delivered on either
// channel. Consumers replace their local state wholesale; redundant
// deliveries of an unchanged document are no-ops by construction.
type CoupleSnapshot struct {
	Couple      *models.Couple   `json:"couple,omitempty"`
	State       CoupleState      `json:"state"`
	LastSent    *models.LastSent `json:"last_sent,omitempty"`
	Anniversary *AnniversaryInfo `json:"anniversary,omitempty"`
}

// SyncController keeps both members' clients fresh through two independent,
// overlapping channels: the live WebSocket (full snapshot per mutation) and
// the push relay (signal bump waking a client-side refetch). The channels
// carry no ordering guarantee relative to each other; every delivery is a
// full replacement, never a delta.
type SyncController struct {
	couples CoupleStore
	widgets WidgetStore
	hub     SnapshotSink
	relay   SignalRelay
}

// NewSyncController creates a new sync controller
func NewSyncController(couples CoupleStore, widgets WidgetStore, hub SnapshotSink, relay SignalRelay) *SyncController {
	return &SyncController{
		couples: couples,
		widgets: widgets,
		hub:     hub,
		relay:   relay,
	}
}

// CoupleChanged re-reads the authoritative couple document, fans the
// snapshot out to every connected member, and bumps the push channel for
// everyone but the actor. The state sent to each member is re-derived from
// the freshly read document, never from the mutating call's local result.
func (c *SyncController) CoupleChanged(ctx context.Context, coupleID, eventType, actorID string) {
	couple, err := c.couples.GetByID(ctx, coupleID)
	if err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to read couple for fan-out")
		return
	}

	for _, memberID := range couple.MemberIDs {
		if !c.hub.IsOnline(memberID) {
			continue
		}
		snapshot := c.SnapshotFor(ctx, couple, memberID)
		if err := c.hub.SendToUser(memberID, WSMessage{
			Type:  "couple_snapshot",
			Event: eventType,
			Data:  snapshot,
		}); err != nil {
			log.Debug().
				Err(err).
				Str("user_id", memberID).
				Msg("Live snapshot not delivered, push channel covers")
		}
	}

	c.relay.Bump(ctx, coupleID, eventType, actorID)
}

// CoupleEstablished sets up the couple's push bookkeeping and fans out the
// resulting snapshot. Called when a member enters the pairing flow, on both
// create and join; the signal ensure is idempotent.
func (c *SyncController) CoupleEstablished(ctx context.Context, coupleID, actorID string) {
	if _, err := c.relay.EnsureSignal(ctx, coupleID); err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to ensure signal record")
	}
	c.CoupleChanged(ctx, coupleID, "status", actorID)
}

// CoupleDeleted tears down the destroyed couple's push bookkeeping
func (c *SyncController) CoupleDeleted(ctx context.Context, coupleID string) {
	c.relay.DeleteSignal(ctx, coupleID)
}

// SnapshotFor builds the per-member snapshot: the couple document, the
// state derived for that member, and their last-sent record
func (c *SyncController) SnapshotFor(ctx context.Context, couple *models.Couple, userID string) *CoupleSnapshot {
	snapshot := &CoupleSnapshot{
		Couple: couple,
		State:  DeriveState(couple, userID),
	}
	if couple != nil {
		lastSent, err := c.widgets.GetLastSent(ctx, userID, couple.ID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to load last sent for snapshot")
		} else {
			snapshot.LastSent = lastSent
		}
		if couple.Anniversary != nil {
			now := time.Now()
			snapshot.Anniversary = &AnniversaryInfo{
				DaysSince:     DaysSince(*couple.Anniversary, now),
				FullYears:     FullYearsSince(*couple.Anniversary, now),
				DaysUntilNext: DaysUntilNextAnniversary(*couple.Anniversary, now),
			}
		}
	}
	return snapshot
}
