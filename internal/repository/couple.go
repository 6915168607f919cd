package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CoupleRepository handles database operations for couples
type CoupleRepository struct {
	db *pgxpool.Pool
}

// NewCoupleRepository creates a new couple repository
func NewCoupleRepository(db *pgxpool.Pool) *CoupleRepository {
	return &CoupleRepository{db: db}
}

// wrapScanError tags genuine row-decode failures as models.ErrDecode.
// Transport errors and pgx.ErrNoRows pass through for the callers' own
// classification.
func wrapScanError(err error) error {
	var scanErr pgx.ScanArgError
	if errors.As(err, &scanErr) {
		return fmt.Errorf("%w: %v", models.ErrDecode, err)
	}
	return err
}

const coupleColumns = `
	id, code, member_ids, anniversary,
	last_message_text, last_message_from_id, last_message_from_name, last_message_at,
	widget_photo_url, created_at, updated_at
`

func scanCouple(row pgx.Row) (*models.Couple, error) {
	var (
		couple  models.Couple
		msgText *string
		msgFrom *string
		msgName *string
		msgAt   *time.Time
	)
	err := row.Scan(
		&couple.ID, &couple.Code, &couple.MemberIDs, &couple.Anniversary,
		&msgText, &msgFrom, &msgName, &msgAt,
		&couple.WidgetPhotoURL, &couple.CreatedAt, &couple.UpdatedAt,
	)
	if err != nil {
		return nil, wrapScanError(err)
	}
	if msgText != nil && msgFrom != nil && msgName != nil && msgAt != nil {
		couple.LastMessage = &models.LastMessage{
			Text:       *msgText,
			FromUserID: *msgFrom,
			FromName:   *msgName,
			UpdatedAt:  *msgAt,
		}
	}
	return &couple, nil
}

// Create creates a new couple with a single member
func (r *CoupleRepository) Create(ctx context.Context, id, code, ownerID string) (*models.Couple, error) {
	query := `
		INSERT INTO couples (id, code, member_ids, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING ` + coupleColumns
	couple, err := scanCouple(r.db.QueryRow(ctx, query, id, code, []string{ownerID}))
	if err != nil {
		return nil, fmt.Errorf("failed to create couple: %w", err)
	}
	return couple, nil
}

// GetByID retrieves a couple by ID
func (r *CoupleRepository) GetByID(ctx context.Context, id string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE id = $1`
	couple, err := scanCouple(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}
	return couple, nil
}

// GetByCode retrieves a couple by its pairing code
func (r *CoupleRepository) GetByCode(ctx context.Context, code string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE code = $1 LIMIT 1`
	couple, err := scanCouple(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get couple by code: %w", err)
	}
	return couple, nil
}

// CodeExists checks if a pairing code is already in use
func (r *CoupleRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM couples WHERE code = $1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// Join adds a member to a couple as an atomic read-verify-append transaction.
// The row lock closes the race where two users join the same code at once and
// both observe a free slot. Joining a couple the user already belongs to is a
// no-op success; joining a full couple returns models.ErrCoupleFull.
func (r *CoupleRepository) Join(ctx context.Context, coupleID, userID string) (*models.Couple, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin join transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var memberIDs []string
	err = tx.QueryRow(ctx, `SELECT member_ids FROM couples WHERE id = $1 FOR UPDATE`, coupleID).Scan(&memberIDs)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock couple: %w", err)
	}

	already := false
	for _, id := range memberIDs {
		if id == userID {
			already = true
			break
		}
	}

	if !already {
		if len(memberIDs) >= 2 {
			return nil, models.ErrCoupleFull
		}
		_, err = tx.Exec(ctx, `
			UPDATE couples
			SET member_ids = array_append(member_ids, $2), updated_at = now()
			WHERE id = $1
		`, coupleID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to append member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	return r.GetByID(ctx, coupleID)
}

// RemoveMember removes a member from a couple, idempotent if already absent
func (r *CoupleRepository) RemoveMember(ctx context.Context, coupleID, userID string) error {
	query := `
		UPDATE couples
		SET member_ids = array_remove(member_ids, $2), updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, coupleID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// DeleteIfEmpty deletes the couple only when its membership is empty
func (r *CoupleRepository) DeleteIfEmpty(ctx context.Context, coupleID string) error {
	query := `DELETE FROM couples WHERE id = $1 AND cardinality(member_ids) = 0`
	if _, err := r.db.Exec(ctx, query, coupleID); err != nil {
		return fmt.Errorf("failed to delete couple: %w", err)
	}
	return nil
}

// SetAnniversary persists the couple's anniversary
func (r *CoupleRepository) SetAnniversary(ctx context.Context, coupleID string, date time.Time) error {
	query := `UPDATE couples SET anniversary = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, coupleID, date); err != nil {
		return fmt.Errorf("failed to set anniversary: %w", err)
	}
	return nil
}

// SetLastMessage overwrites the couple's single last message in place
func (r *CoupleRepository) SetLastMessage(ctx context.Context, coupleID string, msg *models.LastMessage) error {
	query := `
		UPDATE couples
		SET last_message_text = $2,
		    last_message_from_id = $3,
		    last_message_from_name = $4,
		    last_message_at = $5,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, coupleID, msg.Text, msg.FromUserID, msg.FromName, msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to set last message: %w", err)
	}
	return nil
}

// SetWidgetPhotoURL points the couple at its uploaded widget photo
func (r *CoupleRepository) SetWidgetPhotoURL(ctx context.Context, coupleID, url string) error {
	query := `UPDATE couples SET widget_photo_url = $2, updated_at = now() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, coupleID, url); err != nil {
		return fmt.Errorf("failed to set widget photo url: %w", err)
	}
	return nil
}
