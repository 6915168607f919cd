package repository

import (
	"context"
	"fmt"

	"couple-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates or refreshes a profile keyed by id. Called on every
// successful authentication; repeated calls only touch the display name
// and updated_at.
func (r *UserRepository) Upsert(ctx context.Context, id, displayName string) (*models.UserProfile, error) {
	query := `
		INSERT INTO users (id, display_name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, updated_at = now()
		RETURNING id, display_name, couple_id, push_token, created_at, updated_at
	`
	var user models.UserProfile
	err := r.db.QueryRow(ctx, query, id, displayName).Scan(
		&user.ID, &user.DisplayName, &user.CoupleID, &user.PushToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user profile by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `
		SELECT id, display_name, couple_id, push_token, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user models.UserProfile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.DisplayName, &user.CoupleID, &user.PushToken,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetCoupleID points a profile at its couple; nil clears the reference
func (r *UserRepository) SetCoupleID(ctx context.Context, userID string, coupleID *string) error {
	query := `UPDATE users SET couple_id = $1, updated_at = now() WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, coupleID, userID); err != nil {
		return fmt.Errorf("failed to set couple id: %w", err)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1, updated_at = now() WHERE id = $2`
	if _, err := r.db.Exec(ctx, query, pushToken, userID); err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
