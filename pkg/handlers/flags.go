package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/services"
)

// FlagHandler handles feature flag endpoints.
type FlagHandler struct {
	flagService       *services.FlagService
	evaluationService *services.EvaluationService
	logger            *zap.Logger
}

// NewFlagHandler creates a new flag handler.
func NewFlagHandler(flagService *services.FlagService, evaluationService *services.EvaluationService, logger *zap.Logger) *FlagHandler {
	return &FlagHandler{
		flagService:       flagService,
		evaluationService: evaluationService,
		logger:            logger.Named("flag-handler"),
	}
}

// CreateFlagRequest is the request body for creating a flag.
type CreateFlagRequest struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// UpdateFlagRequest is the request body for updating a flag.
type UpdateFlagRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`
}

// Create handles POST /api/flags.
func (h *FlagHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flag := &models.FeatureFlag{
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
	}

	if err := h.flagService.CreateFlag(r.Context(), flag); err != nil {
		h.logger.Error("failed to create flag", zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusCreated, flag)
}

// List handles GET /api/flags.
func (h *FlagHandler) List(w http.ResponseWriter, r *http.Request) {
	flags, err := h.flagService.ListFlags(r.Context())
	if err != nil {
		h.logger.Error("failed to list flags", zap.Error(err))
		HandleServiceError(w, err)
		return
	}
	if flags == nil {
		flags = []*models.FeatureFlag{}
	}

	SuccessResponse(w, http.StatusOK, flags)
}

// Get handles GET /api/flags/{flagId}.
func (h *FlagHandler) Get(w http.ResponseWriter, r *http.Request) {
	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	flag, err := h.flagService.GetFlag(r.Context(), flagID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, flag)
}

// Update handles PUT /api/flags/{flagId}.
func (h *FlagHandler) Update(w http.ResponseWriter, r *http.Request) {
	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flag := &models.FeatureFlag{
		ID:          flagID,
		Name:        req.Name,
		Description: req.Description,
		Enabled:     req.Enabled,
	}

	if err := h.flagService.UpdateFlag(r.Context(), flag); err != nil {
		h.logger.Error("failed to update flag", zap.String("flag_id", flagID.String()), zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, flag)
}

// Delete handles DELETE /api/flags/{flagId}.
func (h *FlagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.flagService.DeleteFlag(r.Context(), flagID); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "flag deleted",
	})
}

// Evaluate handles GET /api/flags/{flagIdOrKey}/evaluate/{userId}.
// The flag segment accepts a key or a UUID; the user segment is the
// caller-supplied external identifier, not an internal UUID.
func (h *FlagHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	flagIDOrKey := r.PathValue("flagIdOrKey")
	externalUserID := r.PathValue("userId")
	if flagIDOrKey == "" || externalUserID == "" {
		ErrorResponse(w, http.StatusBadRequest, "flag and user identifiers are required")
		return
	}

	result, err := h.evaluationService.Evaluate(r.Context(), flagIDOrKey, externalUserID)
	if err != nil {
		h.logger.Error("evaluation failed",
			zap.String("flag", flagIDOrKey),
			zap.String("user", externalUserID),
			zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, result)
}
