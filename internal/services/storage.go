package services

import (
	"context"
	"time"

	"couple-sync-backend/internal/models"
)

// Storage interfaces consumed by the services. The pgx repositories satisfy
// them in production; the tests substitute map-backed fakes.

// CoupleStore persists couple documents
type CoupleStore interface {
	Create(ctx context.Context, id, code, ownerID string) (*models.Couple, error)
	GetByID(ctx context.Context, id string) (*models.Couple, error)
	GetByCode(ctx context.Context, code string) (*models.Couple, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Join(ctx context.Context, coupleID, userID string) (*models.Couple, error)
	RemoveMember(ctx context.Context, coupleID, userID string) error
	DeleteIfEmpty(ctx context.Context, coupleID string) error
	SetAnniversary(ctx context.Context, coupleID string, date time.Time) error
	SetLastMessage(ctx context.Context, coupleID string, msg *models.LastMessage) error
	SetWidgetPhotoURL(ctx context.Context, coupleID, url string) error
}

// UserStore persists user profiles
type UserStore interface {
	Upsert(ctx context.Context, id, displayName string) (*models.UserProfile, error)
	GetByID(ctx context.Context, id string) (*models.UserProfile, error)
	SetCoupleID(ctx context.Context, userID string, coupleID *string) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// QuizStore persists quizzes and attempts
type QuizStore interface {
	ListMeta(ctx context.Context) ([]*models.QuizMeta, error)
	GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error)
	GetAttempt(ctx context.Context, coupleID, quizID, userID string) (*models.QuizAttempt, error)
	SaveAttempt(ctx context.Context, attempt *models.QuizAttempt) (*models.QuizAttempt, error)
}

// SignalStore persists couple signal records
type SignalStore interface {
	Ensure(ctx context.Context, coupleID string) (*models.CoupleSignal, error)
	Bump(ctx context.Context, coupleID, eventType string) error
	Delete(ctx context.Context, coupleID string) error
}

// WidgetStore persists per-user widget notes and last-sent records
type WidgetStore interface {
	SaveNote(ctx context.Context, userID string, note *models.WidgetNote) error
	GetNote(ctx context.Context, userID string) (*models.WidgetNote, error)
	SaveLastSent(ctx context.Context, userID, coupleID string, sent *models.LastSent) error
	GetLastSent(ctx context.Context, userID, coupleID string) (*models.LastSent, error)
	ClearForUser(ctx context.Context, userID, coupleID string) error
}

// SnapshotSink delivers a message to a connected user; delivery to an
// offline user fails without consequence (the push channel covers them)
type SnapshotSink interface {
	SendToUser(userID string, message WSMessage) error
	IsOnline(userID string) bool
}

// SignalBumper wakes the partner's push channel. Fire-and-forget: bump
// failures are logged by the implementation and never propagate.
type SignalBumper interface {
	Bump(ctx context.Context, coupleID, eventType, exceptUserID string)
}
