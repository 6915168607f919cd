package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/models"
	"couple-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// CoupleHandler handles couple-related HTTP requests
type CoupleHandler struct {
	coupleService *services.CoupleService
	sync          *services.SyncController
}

// NewCoupleHandler creates a new couple handler
func NewCoupleHandler(coupleService *services.CoupleService, sync *services.SyncController) *CoupleHandler {
	return &CoupleHandler{
		coupleService: coupleService,
		sync:          sync,
	}
}

// CreateCouple handles POST /api/v1/couples
func (h *CoupleHandler) CreateCouple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	couple, err := h.coupleService.CreateCouple(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to create couple")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.sync.SnapshotFor(ctx, couple, userID))
}

// JoinRequest represents the request body for joining by code
type JoinRequest struct {
	Code string `json:"code"`
}

// Join handles POST /api/v1/couples/join
func (h *CoupleHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		respondError(w, "code is required", http.StatusBadRequest)
		return
	}

	couple, err := h.coupleService.JoinByCode(ctx, userID, req.Code)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("code", req.Code).
			Msg("Failed to join couple")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.sync.SnapshotFor(ctx, couple, userID))
}

// Leave handles DELETE /api/v1/couples
func (h *CoupleHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	if err := h.coupleService.Leave(ctx, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to leave couple")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AnniversaryRequest represents the request body for setting the anniversary
type AnniversaryRequest struct {
	Anniversary time.Time `json:"anniversary"`
}

// SetAnniversary handles PUT /api/v1/couples/anniversary
func (h *CoupleHandler) SetAnniversary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AnniversaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Anniversary.IsZero() {
		respondError(w, "anniversary is required", http.StatusBadRequest)
		return
	}

	couple, err := h.coupleService.SetAnniversary(ctx, userID, req.Anniversary)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to set anniversary")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.sync.SnapshotFor(ctx, couple, userID))
}

// Get handles GET /api/v1/couple, the push-triggered authoritative refetch
func (h *CoupleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, models.ErrNotInCouple), errors.Is(err, models.ErrNotFound):
		// The refetch never fails over a missing couple; the client
		// replaces its state with no-couple and moves on
		couple = nil
	default:
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.sync.SnapshotFor(ctx, couple, userID))
}
