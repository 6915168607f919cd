package handlers

import (
	"encoding/json"
	"net/http"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// QuizHandler handles quiz-related HTTP requests
type QuizHandler struct {
	quizService   *services.QuizService
	coupleService *services.CoupleService
	userService   *services.UserService
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizService *services.QuizService, coupleService *services.CoupleService, userService *services.UserService) *QuizHandler {
	return &QuizHandler{
		quizService:   quizService,
		coupleService: coupleService,
		userService:   userService,
	}
}

// List handles GET /api/v1/quizzes
func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	metas, err := h.quizService.ListQuizzes(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, metas)
}

// Get handles GET /api/v1/quizzes/{quiz_id}
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quiz_id")
	quiz, err := h.quizService.GetQuiz(r.Context(), quizID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, quiz)
}

// AttemptRequest represents the request body for saving quiz progress
type AttemptRequest struct {
	Answers   []int `json:"answers"`
	Completed bool  `json:"completed"`
}

// SaveAttempt handles PUT /api/v1/quizzes/{quiz_id}/attempt
func (h *QuizHandler) SaveAttempt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	quizID := chi.URLParam(r, "quiz_id")

	var req AttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	user, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	attempt, err := h.quizService.SaveProgress(ctx, couple.ID, quizID, userID, user.DisplayName, req.Answers, req.Completed)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("quiz_id", quizID).
			Msg("Failed to save quiz attempt")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}

// Summary handles GET /api/v1/quizzes/{quiz_id}/summary
func (h *QuizHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	quizID := chi.URLParam(r, "quiz_id")

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	summary, err := h.quizService.Summary(ctx, couple.ID, quizID, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
