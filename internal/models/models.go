package models

import "time"

// UserProfile represents an authenticated user in the system
type UserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CoupleID    *string   `json:"couple_id,omitempty"`
	PushToken   *string   `json:"push_token,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LastMessage is the single most-recent message on a couple.
// Each send overwrites it in place; there is no history.
type LastMessage struct {
	Text       string    `json:"text"`
	FromUserID string    `json:"from_user_id"`
	FromName   string    `json:"from_name"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Couple represents the paired-account entity joining 0-2 users
type Couple struct {
	ID             string       `json:"id"`
	Code           string       `json:"code"`
	MemberIDs      []string     `json:"member_ids"`
	Anniversary    *time.Time   `json:"anniversary,omitempty"`
	LastMessage    *LastMessage `json:"last_message,omitempty"`
	WidgetPhotoURL *string      `json:"widget_photo_url,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasMember reports whether the user belongs to the couple
func (c *Couple) HasMember(userID string) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PartnerID returns the other member's id, or "" when there is no partner yet
func (c *Couple) PartnerID(userID string) string {
	for _, id := range c.MemberIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// CoupleSignal is a lightweight record whose mutation triggers push delivery,
// decoupled from actual application data
type CoupleSignal struct {
	CoupleID    string    `json:"couple_id"`
	EventType   string    `json:"event_type"`
	LastEventAt time.Time `json:"last_event_at"`
	Version     int       `json:"version"`
}

// QuizMeta is the catalog entry for a public quiz
type QuizMeta struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

// QuizQuestion is one question of a public quiz
type QuizQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Order   int      `json:"order"`
}

// Quiz aggregates a quiz's metadata with its ordered questions
type Quiz struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle"`
	Questions []QuizQuestion `json:"questions"`
}

// QuizAttempt is one user's answer set for a quiz, scoped to a couple.
// Answers hold option indices; -1 marks an unanswered question.
// CompletedAt being set is the sole completion signal.
type QuizAttempt struct {
	CoupleID    string     `json:"couple_id"`
	QuizID      string     `json:"quiz_id"`
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Answers     []int      `json:"answers"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the attempt has been finalized
func (a *QuizAttempt) Completed() bool {
	return a != nil && a.CompletedAt != nil
}

// WidgetNote is the partner message mirrored for a user's home-screen widget
type WidgetNote struct {
	Text       string    `json:"text"`
	FromUserID string    `json:"from_user_id"`
	FromName   string    `json:"from_name"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LastSent mirrors the most recent message a user sent, kept per
// (user, couple) so the resend/edit UI survives app restarts
type LastSent struct {
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}
