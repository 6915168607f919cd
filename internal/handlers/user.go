package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/models"
	"couple-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService   *services.UserService
	coupleService *services.CoupleService
	sync          *services.SyncController
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, coupleService *services.CoupleService, sync *services.SyncController) *UserHandler {
	return &UserHandler{
		userService:   userService,
		coupleService: coupleService,
		sync:          sync,
	}
}

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateUserResponse carries the new profile and its bearer token
type CreateUserResponse struct {
	User  *models.UserProfile `json:"user"`
	Token string              `json:"token"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.CreateUser(r.Context(), req.DisplayName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create user")
		respondError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("display_name", user.DisplayName).
		Msg("User created")

	respondJSON(w, http.StatusOK, CreateUserResponse{User: user, Token: token})
}

// MeResponse is the bootstrap payload: the profile plus the current couple
// snapshot derived from it
type MeResponse struct {
	User     *models.UserProfile      `json:"user"`
	Snapshot *services.CoupleSnapshot `json:"snapshot"`
}

// Me handles GET /api/v1/me. The upsert is idempotent and runs on every
// load; state is always re-derived from the profile's couple pointer.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	user, err := h.userService.Bootstrap(ctx, userID, r.URL.Query().Get("display_name"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := MeResponse{User: user}
	couple, err := h.coupleService.CoupleFor(ctx, userID)
	switch {
	case err == nil:
		resp.Snapshot = h.sync.SnapshotFor(ctx, couple, userID)
	case errors.Is(err, models.ErrNotInCouple), errors.Is(err, models.ErrNotFound):
		// An orphaned or missing couple pointer resolves to no-couple
		resp.Snapshot = h.sync.SnapshotFor(ctx, nil, userID)
	default:
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
