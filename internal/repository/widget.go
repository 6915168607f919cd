package repository

import (
	"context"
	"fmt"

	"couple-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WidgetRepository handles the per-user widget note and last-sent rows.
// These are the server-side counterparts of the client's shared widget
// storage: the widget note mirrors the latest partner message, the
// last-sent row keeps the resend/edit UI alive across app restarts.
type WidgetRepository struct {
	db *pgxpool.Pool
}

// NewWidgetRepository creates a new widget repository
func NewWidgetRepository(db *pgxpool.Pool) *WidgetRepository {
	return &WidgetRepository{db: db}
}

// SaveNote overwrites the widget note for a user
func (r *WidgetRepository) SaveNote(ctx context.Context, userID string, note *models.WidgetNote) error {
	query := `
		INSERT INTO widget_notes (user_id, text, from_user_id, from_name, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET text = EXCLUDED.text,
		    from_user_id = EXCLUDED.from_user_id,
		    from_name = EXCLUDED.from_name,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query, userID, note.Text, note.FromUserID, note.FromName, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save widget note: %w", err)
	}
	return nil
}

// GetNote returns the widget note for a user, nil when absent
func (r *WidgetRepository) GetNote(ctx context.Context, userID string) (*models.WidgetNote, error) {
	query := `SELECT text, from_user_id, from_name, updated_at FROM widget_notes WHERE user_id = $1`
	var note models.WidgetNote
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&note.Text, &note.FromUserID, &note.FromName, &note.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get widget note: %w", err)
	}
	return &note, nil
}

// SaveLastSent records the most recent message a user sent in their couple
func (r *WidgetRepository) SaveLastSent(ctx context.Context, userID, coupleID string, sent *models.LastSent) error {
	query := `
		INSERT INTO last_sent (user_id, couple_id, text, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, couple_id) DO UPDATE
		SET text = EXCLUDED.text, sent_at = EXCLUDED.sent_at
	`
	if _, err := r.db.Exec(ctx, query, userID, coupleID, sent.Text, sent.SentAt); err != nil {
		return fmt.Errorf("failed to save last sent: %w", err)
	}
	return nil
}

// GetLastSent returns the user's last-sent record for a couple, nil when absent
func (r *WidgetRepository) GetLastSent(ctx context.Context, userID, coupleID string) (*models.LastSent, error) {
	query := `SELECT text, sent_at FROM last_sent WHERE user_id = $1 AND couple_id = $2`
	var sent models.LastSent
	err := r.db.QueryRow(ctx, query, userID, coupleID).Scan(&sent.Text, &sent.SentAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last sent: %w", err)
	}
	return &sent, nil
}

// ClearForUser removes a user's widget note and last-sent rows on leave
func (r *WidgetRepository) ClearForUser(ctx context.Context, userID, coupleID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM widget_notes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear widget note: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM last_sent WHERE user_id = $1 AND couple_id = $2`, userID, coupleID); err != nil {
		return fmt.Errorf("failed to clear last sent: %w", err)
	}
	return nil
}
