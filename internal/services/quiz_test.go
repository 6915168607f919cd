package services

import (
	"context"
	"errors"
	"testing"

	"couple-sync-backend/internal/models"
)

func sampleQuiz(questionCount int) *models.Quiz {
	quiz := &models.Quiz{ID: "q1", Title: "How well do you know each other?"}
	for i := 0; i < questionCount; i++ {
		quiz.Questions = append(quiz.Questions, models.QuizQuestion{
			ID:      string(rune('a' + i)),
			Text:    "question",
			Options: []string{"one", "two", "three"},
			Order:   i,
		})
	}
	return quiz
}

type quizEnv struct {
	quizzes *FakeQuizStore
	couples *FakeCoupleStore
	hub     *FakeHub
	relay   *FakeRelay
	service *QuizService
}

func newQuizEnv(t *testing.T, quiz *models.Quiz) *quizEnv {
	t.Helper()
	env := &quizEnv{
		quizzes: NewFakeQuizStore(),
		couples: NewFakeCoupleStore(),
		hub:     NewFakeHub(),
		relay:   NewFakeRelay(),
	}
	env.quizzes.AddQuiz(quiz)
	if _, err := env.couples.Create(context.Background(), "c1", "ABC234", "alice"); err != nil {
		t.Fatalf("failed to seed couple: %v", err)
	}
	if _, err := env.couples.Join(context.Background(), "c1", "bob"); err != nil {
		t.Fatalf("failed to seed second member: %v", err)
	}
	env.service = NewQuizService(env.quizzes, env.couples, env.hub, env.relay)
	return env
}

func TestSaveProgressRejectsWrongLength(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(3))

	_, err := env.service.SaveProgress(context.Background(), "c1", "q1", "alice", "Alice", []int{0, 1}, false)
	if !errors.Is(err, models.ErrAttemptInvalid) {
		t.Fatalf("expected ErrAttemptInvalid for short answers, got %v", err)
	}
}

func TestSaveProgressRejectsIncompleteCompletion(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(3))

	_, err := env.service.SaveProgress(context.Background(), "c1", "q1", "alice", "Alice", []int{0, -1, 2}, true)
	if !errors.Is(err, models.ErrAttemptInvalid) {
		t.Fatalf("expected ErrAttemptInvalid for unanswered completion, got %v", err)
	}
}

func TestSaveProgressPartialThenComplete(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(3))
	ctx := context.Background()

	partial, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, -1, -1}, false)
	if err != nil {
		t.Fatalf("partial save failed: %v", err)
	}
	if partial.Completed() {
		t.Fatal("partial attempt must not be completed")
	}

	full, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, 1, 2}, true)
	if err != nil {
		t.Fatalf("complete save failed: %v", err)
	}
	if !full.Completed() {
		t.Fatal("expected attempt completed")
	}
	if full.StartedAt.IsZero() {
		t.Error("expected started_at preserved from the first save")
	}
}

func TestCompletionNeverFlipsBack(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(2))
	ctx := context.Background()

	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, 1}, true); err != nil {
		t.Fatalf("complete save failed: %v", err)
	}

	// A later partial save updates answers but the completion stamp stays.
	saved, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{1, 0}, false)
	if err != nil {
		t.Fatalf("resave failed: %v", err)
	}
	if !saved.Completed() {
		t.Fatal("expected completion to be sticky")
	}
	if saved.Answers[0] != 1 || saved.Answers[1] != 0 {
		t.Fatalf("expected answers superseded, got %v", saved.Answers)
	}
}

func TestSummaryGatedUntilBothComplete(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(2))
	ctx := context.Background()

	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, 1}, true); err != nil {
		t.Fatalf("alice save failed: %v", err)
	}
	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "bob", "Bob", []int{0, -1}, false); err != nil {
		t.Fatalf("bob save failed: %v", err)
	}

	summary, err := env.service.Summary(ctx, "c1", "q1", "alice")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if summary.CanReveal {
		t.Fatal("reveal must wait for the partner's completion")
	}
	if summary.Partner != nil {
		t.Fatal("partner answers must not cross the wire before reveal")
	}
	if !summary.PartnerStarted {
		t.Error("expected partner started flag")
	}
	if summary.PartnerCompleted {
		t.Error("partner is mid-quiz, completed flag must be false")
	}
	if summary.MatchPercent != 0 {
		t.Errorf("expected zeroed match percent, got %d", summary.MatchPercent)
	}
	for i, m := range summary.PerQuestionMatch {
		if m {
			t.Errorf("expected zeroed per-question match at %d", i)
		}
	}
}

func TestSummaryRevealsWhenBothComplete(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(4))
	ctx := context.Background()

	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, 1, 2, 0}, true); err != nil {
		t.Fatalf("alice save failed: %v", err)
	}
	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "bob", "Bob", []int{0, 2, 2, 1}, true); err != nil {
		t.Fatalf("bob save failed: %v", err)
	}

	summary, err := env.service.Summary(ctx, "c1", "q1", "alice")
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}

	if !summary.CanReveal {
		t.Fatal("expected reveal once both completed")
	}
	if summary.Partner == nil {
		t.Fatal("expected partner attempt in the revealed summary")
	}
	if summary.MatchPercent != 50 {
		t.Errorf("expected 50%% match, got %d", summary.MatchPercent)
	}
	wantMatches := []bool{true, false, true, false}
	for i, want := range wantMatches {
		if summary.PerQuestionMatch[i] != want {
			t.Errorf("question %d: expected match=%v", i, want)
		}
	}
}

func TestComputeSummaryIdenticalAttempts(t *testing.T) {
	quiz := sampleQuiz(3)
	answers := []int{2, 0, 1}
	mine := &models.QuizAttempt{Answers: answers}
	partner := &models.QuizAttempt{Answers: answers}

	percent, matches := ComputeSummary(quiz, mine, partner)

	if percent != 100 {
		t.Fatalf("expected 100%% for identical attempts, got %d", percent)
	}
	for i, m := range matches {
		if !m {
			t.Errorf("expected question %d matched", i)
		}
	}
}

func TestComputeSummarySentinelNeverMatches(t *testing.T) {
	quiz := sampleQuiz(2)
	mine := &models.QuizAttempt{Answers: []int{-1, 0}}
	partner := &models.QuizAttempt{Answers: []int{-1, 0}}

	percent, matches := ComputeSummary(quiz, mine, partner)

	if matches[0] {
		t.Error("two unanswered questions must not count as a match")
	}
	if !matches[1] {
		t.Error("expected the answered question to match")
	}
	if percent != 50 {
		t.Errorf("expected 50%%, got %d", percent)
	}
}

func TestComputeSummaryMissingAttempt(t *testing.T) {
	quiz := sampleQuiz(3)
	mine := &models.QuizAttempt{Answers: []int{0, 1, 2}}

	percent, matches := ComputeSummary(quiz, mine, nil)

	if percent != 0 {
		t.Fatalf("expected 0%% against a missing attempt, got %d", percent)
	}
	for i, m := range matches {
		if m {
			t.Errorf("expected no match at %d", i)
		}
	}
}

func TestComputeSummaryEmptyQuiz(t *testing.T) {
	percent, matches := ComputeSummary(sampleQuiz(0), nil, nil)
	if percent != 0 {
		t.Fatalf("expected 0%% for an empty quiz, got %d", percent)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no per-question entries, got %d", len(matches))
	}
}

func TestSaveProgressFansOutGatedSummaries(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(2))
	ctx := context.Background()
	env.hub.SetOnline("alice", true)
	env.hub.SetOnline("bob", true)

	if _, err := env.service.SaveProgress(ctx, "c1", "q1", "alice", "Alice", []int{0, 1}, true); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, userID := range []string{"alice", "bob"} {
		sent := env.hub.Sent(userID)
		if len(sent) != 1 {
			t.Fatalf("%s: expected one fan-out message, got %d", userID, len(sent))
		}
		summary, ok := sent[0].Data.(*PairSummary)
		if !ok {
			t.Fatalf("%s: expected a pair summary payload, got %T", userID, sent[0].Data)
		}
		if summary.CanReveal {
			t.Errorf("%s: reveal must stay gated while bob has no attempt", userID)
		}
	}

	bumps := env.relay.Bumps()
	if len(bumps) != 1 || bumps[0] != "c1:quiz:alice" {
		t.Fatalf("expected one quiz bump excluding alice, got %v", bumps)
	}
}

func TestGetQuizUnknown(t *testing.T) {
	env := newQuizEnv(t, sampleQuiz(1))

	_, err := env.service.GetQuiz(context.Background(), "missing")
	if !errors.Is(err, models.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
