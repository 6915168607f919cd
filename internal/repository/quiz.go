package repository

import (
	"context"
	"fmt"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuizRepository handles database operations for quizzes and attempts
type QuizRepository struct {
	db *pgxpool.Pool
}

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{db: db}
}

// ListMeta returns the public quiz catalog ordered by title
func (r *QuizRepository) ListMeta(ctx context.Context) ([]*models.QuizMeta, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, subtitle FROM quizzes ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", err)
	}
	defer rows.Close()

	var metas []*models.QuizMeta
	for rows.Next() {
		var m models.QuizMeta
		if err := rows.Scan(&m.ID, &m.Title, &m.Subtitle); err != nil {
			return nil, fmt.Errorf("failed to scan quiz meta: %w", err)
		}
		metas = append(metas, &m)
	}
	return metas, rows.Err()
}

// GetQuiz returns a quiz's metadata with its questions in order
func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	var quiz models.Quiz
	err := r.db.QueryRow(ctx, `SELECT id, title, subtitle FROM quizzes WHERE id = $1`, quizID).
		Scan(&quiz.ID, &quiz.Title, &quiz.Subtitle)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, models.ErrQuizNotFound
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, text, options, ord
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY ord
	`, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q models.QuizQuestion
		if err := rows.Scan(&q.ID, &q.Text, &q.Options, &q.Order); err != nil {
			return nil, fmt.Errorf("failed to scan quiz question: %w", err)
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return &quiz, rows.Err()
}

// GetAttempt retrieves one user's attempt, nil when absent
func (r *QuizRepository) GetAttempt(ctx context.Context, coupleID, quizID, userID string) (*models.QuizAttempt, error) {
	query := `
		SELECT couple_id, quiz_id, user_id, display_name, answers, started_at, completed_at
		FROM quiz_attempts
		WHERE couple_id = $1 AND quiz_id = $2 AND user_id = $3
	`
	var a models.QuizAttempt
	err := r.db.QueryRow(ctx, query, coupleID, quizID, userID).Scan(
		&a.CoupleID, &a.QuizID, &a.UserID, &a.DisplayName,
		&a.Answers, &a.StartedAt, &a.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz attempt: %w", err)
	}
	return &a, nil
}

// SaveAttempt merge-upserts an attempt. started_at is set once on first
// write; completed_at is only ever set, never cleared.
func (r *QuizRepository) SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) (*models.QuizAttempt, error) {
	var completedAt *time.Time
	if attempt.CompletedAt != nil {
		completedAt = attempt.CompletedAt
	}
	query := `
		INSERT INTO quiz_attempts (couple_id, quiz_id, user_id, display_name, answers, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		ON CONFLICT (couple_id, quiz_id, user_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    answers = EXCLUDED.answers,
		    completed_at = COALESCE(quiz_attempts.completed_at, EXCLUDED.completed_at)
		RETURNING couple_id, quiz_id, user_id, display_name, answers, started_at, completed_at
	`
	var saved models.QuizAttempt
	err := r.db.QueryRow(ctx, query,
		attempt.CoupleID, attempt.QuizID, attempt.UserID, attempt.DisplayName,
		attempt.Answers, completedAt,
	).Scan(
		&saved.CoupleID, &saved.QuizID, &saved.UserID, &saved.DisplayName,
		&saved.Answers, &saved.StartedAt, &saved.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save quiz attempt: %w", err)
	}
	return &saved, nil
}
