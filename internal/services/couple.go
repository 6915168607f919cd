package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const codeAttempts = 10

// Synchronizer propagates couple document changes to both members over the
// live and push channels
type Synchronizer interface {
	CoupleEstablished(ctx context.Context, coupleID, actorID string)
	CoupleChanged(ctx context.Context, coupleID, eventType, actorID string)
	CoupleDeleted(ctx context.Context, coupleID string)
}

// CoupleService owns the pairing state machine: create/join/leave
// transitions and the couple document invariants
type CoupleService struct {
	couples CoupleStore
	users   UserStore
	widgets WidgetStore
	sync    Synchronizer
}

// NewCoupleService creates a new couple service
func NewCoupleService(couples CoupleStore, users UserStore, widgets WidgetStore, sync Synchronizer) *CoupleService {
	return &CoupleService{
		couples: couples,
		users:   users,
		widgets: widgets,
		sync:    sync,
	}
}

// CreateCouple generates a pairing code and creates a couple with the owner
// as sole member, then points the owner's profile at it. The two writes are
// not transactional across documents: a failure between them leaves an inert
// orphan couple that is never discovered, and the user simply creates again.
func (s *CoupleService) CreateCouple(ctx context.Context, ownerID string) (*models.Couple, error) {
	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	coupleID := uuid.New().String()
	couple, err := s.couples.Create(ctx, coupleID, code, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create couple: %w", err)
	}

	if err := s.users.SetCoupleID(ctx, ownerID, &coupleID); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", ownerID).
			Str("couple_id", coupleID).
			Msg("Couple created but profile update failed, couple is orphaned")
		return nil, fmt.Errorf("failed to link profile: %w", err)
	}

	log.Info().
		Str("user_id", ownerID).
		Str("couple_id", coupleID).
		Str("code", code).
		Msg("Couple created")

	s.sync.CoupleEstablished(ctx, coupleID, ownerID)

	return couple, nil
}

// JoinByCode joins the current user to the couple matching the normalized
// code. Joining a full couple fails with models.ErrCoupleFull unless the
// user is already a member, in which case the rejoin is a no-op success.
func (s *CoupleService) JoinByCode(ctx context.Context, userID, code string) (*models.Couple, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, models.ErrNotFound
	}

	found, err := s.couples.GetByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}

	// The lookup's member count is advisory only; the join transaction
	// re-verifies capacity under a row lock.
	couple, err := s.couples.Join(ctx, found.ID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetCoupleID(ctx, userID, &couple.ID); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("couple_id", couple.ID).
			Msg("Joined couple but profile update failed")
		return nil, fmt.Errorf("failed to link profile: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", couple.ID).
		Str("code", normalized).
		Msg("Joined couple")

	s.sync.CoupleEstablished(ctx, couple.ID, userID)

	return couple, nil
}

// Leave removes the user from their couple, clears their profile pointer and
// deletes the couple only once membership reaches zero. Widget and last-sent
// rows are cleared best-effort; the caller's local state transitions to
// no-couple regardless.
func (s *CoupleService) Leave(ctx context.Context, userID string) error {
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if profile.CoupleID == nil {
		return models.ErrNotInCouple
	}
	coupleID := *profile.CoupleID

	if err := s.couples.RemoveMember(ctx, coupleID, userID); err != nil {
		return fmt.Errorf("failed to leave couple: %w", err)
	}

	if err := s.users.SetCoupleID(ctx, userID, nil); err != nil {
		return fmt.Errorf("failed to unlink profile: %w", err)
	}

	if err := s.widgets.ClearForUser(ctx, userID, coupleID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to clear widget rows on leave")
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to reread couple after leave")
		}
		return nil
	}

	if len(couple.MemberIDs) == 0 {
		if err := s.couples.DeleteIfEmpty(ctx, coupleID); err != nil {
			log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to delete empty couple")
			return nil
		}
		s.sync.CoupleDeleted(ctx, coupleID)
		log.Info().Str("couple_id", coupleID).Msg("Couple deleted")
		return nil
	}

	s.sync.CoupleChanged(ctx, coupleID, "status", userID)

	log.Info().
		Str("user_id", userID).
		Str("couple_id", coupleID).
		Int("members", len(couple.MemberIDs)).
		Msg("Left couple")

	return nil
}

// SetAnniversary persists the anniversary at a UTC day boundary so day-count
// math agrees across member timezones
func (s *CoupleService) SetAnniversary(ctx context.Context, userID string, date time.Time) (*models.Couple, error) {
	couple, err := s.coupleFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.couples.SetAnniversary(ctx, couple.ID, NormalizeAnniversary(date)); err != nil {
		return nil, fmt.Errorf("failed to set anniversary: %w", err)
	}

	s.sync.CoupleChanged(ctx, couple.ID, "anniversary", userID)

	return s.couples.GetByID(ctx, couple.ID)
}

// CoupleFor returns the authoritative couple document for a user's profile,
// or models.ErrNotInCouple when the profile has no couple pointer
func (s *CoupleService) CoupleFor(ctx context.Context, userID string) (*models.Couple, error) {
	return s.coupleFor(ctx, userID)
}

func (s *CoupleService) coupleFor(ctx context.Context, userID string) (*models.Couple, error) {
	profile, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.CoupleID == nil {
		return nil, models.ErrNotInCouple
	}
	return s.couples.GetByID(ctx, *profile.CoupleID)
}

// generateUniqueCode draws codes until one is unused. Uniqueness is
// best-effort: the check closes the common case without a constraint.
func (s *CoupleService) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := GenerateCode(codeLength)
		exists, err := s.couples.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique code after %d attempts", codeAttempts)
}
