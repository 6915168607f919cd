package repository

import (
	"context"
	"fmt"

	"couple-sync-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SignalRepository handles database operations for couple signal records
type SignalRepository struct {
	db *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{db: db}
}

// Ensure creates the signal record for a couple if it does not exist yet
// and returns it. Safe to call repeatedly.
func (r *SignalRepository) Ensure(ctx context.Context, coupleID string) (*models.CoupleSignal, error) {
	query := `
		INSERT INTO couple_signals (couple_id, event_type, last_event_at, version)
		VALUES ($1, 'bootstrap', now(), 0)
		ON CONFLICT (couple_id) DO UPDATE SET couple_id = EXCLUDED.couple_id
		RETURNING couple_id, event_type, last_event_at, version
	`
	var sig models.CoupleSignal
	err := r.db.QueryRow(ctx, query, coupleID).Scan(
		&sig.CoupleID, &sig.EventType, &sig.LastEventAt, &sig.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure signal record: %w", err)
	}
	return &sig, nil
}

// Bump touches the signal record so the partner's push channel fires
func (r *SignalRepository) Bump(ctx context.Context, coupleID, eventType string) error {
	query := `
		INSERT INTO couple_signals (couple_id, event_type, last_event_at, version)
		VALUES ($1, $2, now(), 1)
		ON CONFLICT (couple_id) DO UPDATE
		SET event_type = EXCLUDED.event_type,
		    last_event_at = now(),
		    version = couple_signals.version + 1
	`
	if _, err := r.db.Exec(ctx, query, coupleID, eventType); err != nil {
		return fmt.Errorf("failed to bump signal record: %w", err)
	}
	return nil
}

// Delete removes the signal record after a couple is destroyed
func (r *SignalRepository) Delete(ctx context.Context, coupleID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM couple_signals WHERE couple_id = $1`, coupleID); err != nil {
		return fmt.Errorf("failed to delete signal record: %w", err)
	}
	return nil
}
