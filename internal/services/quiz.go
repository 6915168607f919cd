package services

import (
	"context"
	"fmt"
	"time"

	"couple-sync-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// unanswered is the sentinel index for a question with no answer yet
const unanswered = -1

// PairSummary compares both members' attempts for one quiz. Partner answers
// only cross the wire once both attempts are complete; until then the match
// data is zeroed so partial answers can never bias the other side.
type PairSummary struct {
	QuizID           string              `json:"quiz_id"`
	CanReveal        bool                `json:"can_reveal"`
	MatchPercent     int                 `json:"match_percent"`
	PerQuestionMatch []bool              `json:"per_question_match"`
	Mine             *models.QuizAttempt `json:"mine,omitempty"`
	Partner          *models.QuizAttempt `json:"partner,omitempty"`
	PartnerStarted   bool                `json:"partner_started"`
	PartnerCompleted bool                `json:"partner_completed"`
}

// QuizService handles the quiz catalog and the dual-party attempt
// comparison protocol
type QuizService struct {
	quizzes QuizStore
	couples CoupleStore
	hub     SnapshotSink
	relay   SignalBumper
}

// NewQuizService creates a new quiz service
func NewQuizService(quizzes QuizStore, couples CoupleStore, hub SnapshotSink, relay SignalBumper) *QuizService {
	return &QuizService{
		quizzes: quizzes,
		couples: couples,
		hub:     hub,
		relay:   relay,
	}
}

// ListQuizzes returns the public quiz catalog
func (s *QuizService) ListQuizzes(ctx context.Context) ([]*models.QuizMeta, error) {
	return s.quizzes.ListMeta(ctx)
}

// GetQuiz returns a quiz with its ordered questions
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (*models.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// SaveProgress merge-saves a user's attempt: the answers array supersedes
// the stored one, started_at is set once, completed only flips forward.
// Each save fans a gated summary out to both members and bumps the signal.
func (s *QuizService) SaveProgress(ctx context.Context, coupleID, quizID, userID, displayName string, answers []int, completed bool) (*models.QuizAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	if len(answers) != len(quiz.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d",
			models.ErrAttemptInvalid, len(quiz.Questions), len(answers))
	}
	if completed {
		for i, a := range answers {
			if a == unanswered {
				return nil, fmt.Errorf("%w: question %d unanswered", models.ErrAttemptInvalid, i)
			}
		}
	}

	attempt := &models.QuizAttempt{
		CoupleID:    coupleID,
		QuizID:      quizID,
		UserID:      userID,
		DisplayName: displayName,
		Answers:     answers,
	}
	if completed {
		now := time.Now().UTC()
		attempt.CompletedAt = &now
	}

	saved, err := s.quizzes.SaveAttempt(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	s.fanOutAttempt(ctx, quiz, coupleID, userID)

	return saved, nil
}

// Summary returns the gated pair summary from the viewer's side
func (s *QuizService) Summary(ctx context.Context, coupleID, quizID, viewerID string) (*PairSummary, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		return nil, err
	}

	return s.summaryFor(ctx, quiz, couple, viewerID)
}

func (s *QuizService) summaryFor(ctx context.Context, quiz *models.Quiz, couple *models.Couple, viewerID string) (*PairSummary, error) {
	mine, err := s.quizzes.GetAttempt(ctx, couple.ID, quiz.ID, viewerID)
	if err != nil {
		return nil, err
	}

	var partner *models.QuizAttempt
	if partnerID := couple.PartnerID(viewerID); partnerID != "" {
		partner, err = s.quizzes.GetAttempt(ctx, couple.ID, quiz.ID, partnerID)
		if err != nil {
			return nil, err
		}
	}

	summary := &PairSummary{
		QuizID:           quiz.ID,
		Mine:             mine,
		PartnerStarted:   partner != nil,
		PartnerCompleted: partner.Completed(),
		PerQuestionMatch: make([]bool, len(quiz.Questions)),
	}

	// Reveal is gated on BOTH attempts being complete, not just the
	// viewer's; a done user still cannot see a partner mid-quiz.
	if mine.Completed() && partner.Completed() {
		summary.CanReveal = true
		summary.Partner = partner
		summary.MatchPercent, summary.PerQuestionMatch = ComputeSummary(quiz, mine, partner)
	}

	return summary, nil
}

// ComputeSummary compares two attempts question by question. A question
// matches iff both sides answered it (non-sentinel) with the same option.
// A missing or partial attempt counts as all-mismatched, never an error.
func ComputeSummary(quiz *models.Quiz, mine, partner *models.QuizAttempt) (int, []bool) {
	count := len(quiz.Questions)
	myAnswers := answersOrSentinel(mine, count)
	partnerAnswers := answersOrSentinel(partner, count)

	matches := make([]bool, count)
	matched := 0
	for i := 0; i < count; i++ {
		if i < len(myAnswers) && i < len(partnerAnswers) &&
			myAnswers[i] != unanswered && myAnswers[i] == partnerAnswers[i] {
			matches[i] = true
			matched++
		}
	}

	total := count
	if total < 1 {
		total = 1
	}
	return matched * 100 / total, matches
}

func answersOrSentinel(attempt *models.QuizAttempt, count int) []int {
	if attempt == nil {
		answers := make([]int, count)
		for i := range answers {
			answers[i] = unanswered
		}
		return answers
	}
	return attempt.Answers
}

// fanOutAttempt sends each member their own gated view of the pair and
// bumps the push channel. Best-effort on both counts.
func (s *QuizService) fanOutAttempt(ctx context.Context, quiz *models.Quiz, coupleID, actorID string) {
	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		log.Error().Err(err).Str("couple_id", coupleID).Msg("Failed to load couple for quiz fan-out")
		return
	}

	for _, memberID := range couple.MemberIDs {
		if !s.hub.IsOnline(memberID) {
			continue
		}
		summary, err := s.summaryFor(ctx, quiz, couple, memberID)
		if err != nil {
			log.Error().Err(err).Str("user_id", memberID).Msg("Failed to build quiz summary for fan-out")
			continue
		}
		if err := s.hub.SendToUser(memberID, WSMessage{
			Type: "quiz_attempt",
			Data: summary,
		}); err != nil {
			log.Debug().Err(err).Str("user_id", memberID).Msg("Quiz summary not delivered live")
		}
	}

	s.relay.Bump(ctx, coupleID, "quiz", actorID)
}
