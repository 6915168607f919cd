package handlers

import (
	"encoding/json"
	"net/http"

	"couple-sync-backend/internal/middleware"
	"couple-sync-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// WidgetPhotoHandler handles widget photo HTTP requests
type WidgetPhotoHandler struct {
	photoService  *services.WidgetPhotoService
	coupleService *services.CoupleService
}

// NewWidgetPhotoHandler creates a new widget photo handler
func NewWidgetPhotoHandler(photoService *services.WidgetPhotoService, coupleService *services.CoupleService) *WidgetPhotoHandler {
	return &WidgetPhotoHandler{
		photoService:  photoService,
		coupleService: coupleService,
	}
}

// UploadRequest represents the request body for a presigned upload
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// Upload handles POST /api/v1/widget-photo/upload
func (h *WidgetPhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp, err := h.photoService.GetUploadURL(ctx, couple.ID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to presign widget photo upload")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// ConfirmRequest represents the request body for confirming an upload
type ConfirmRequest struct {
	PhotoURL string `json:"photo_url"`
}

// Confirm handles POST /api/v1/widget-photo/confirm
func (h *WidgetPhotoHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PhotoURL == "" {
		respondError(w, "photo_url is required", http.StatusBadRequest)
		return
	}

	couple, err := h.coupleService.CoupleFor(ctx, userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := h.photoService.Confirm(ctx, couple.ID, userID, req.PhotoURL); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to confirm widget photo")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
