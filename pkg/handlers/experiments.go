package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/services"
)

// ExperimentHandler handles experiment endpoints.
type ExperimentHandler struct {
	experimentService *services.ExperimentService
	evaluationService *services.EvaluationService
	logger            *zap.Logger
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(experimentService *services.ExperimentService, evaluationService *services.EvaluationService, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{
		experimentService: experimentService,
		evaluationService: evaluationService,
		logger:            logger.Named("experiment-handler"),
	}
}

// CreateExperimentRequest is the request body for creating an experiment.
type CreateExperimentRequest struct {
	FlagID             uuid.UUID  `json:"flag_id"`
	Name               string     `json:"name"`
	Description        *string    `json:"description,omitempty"`
	Status             string     `json:"status,omitempty"`
	VariantAPercentage float64    `json:"variant_a_percentage"`
	VariantBPercentage float64    `json:"variant_b_percentage"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

// UpdateExperimentRequest is the request body for updating an experiment.
type UpdateExperimentRequest struct {
	Name               string     `json:"name"`
	Description        *string    `json:"description,omitempty"`
	Status             string     `json:"status"`
	VariantAPercentage float64    `json:"variant_a_percentage"`
	VariantBPercentage float64    `json:"variant_b_percentage"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

// Create handles POST /api/experiments.
func (h *ExperimentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	experiment := &models.Experiment{
		FlagID:             req.FlagID,
		Name:               req.Name,
		Description:        req.Description,
		Status:             req.Status,
		VariantAPercentage: req.VariantAPercentage,
		VariantBPercentage: req.VariantBPercentage,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
	}

	if err := h.experimentService.CreateExperiment(r.Context(), experiment); err != nil {
		h.logger.Error("failed to create experiment", zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusCreated, experiment)
}

// List handles GET /api/experiments.
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	experiments, err := h.experimentService.ListExperiments(r.Context())
	if err != nil {
		h.logger.Error("failed to list experiments", zap.Error(err))
		HandleServiceError(w, err)
		return
	}
	if experiments == nil {
		experiments = []*models.Experiment{}
	}

	SuccessResponse(w, http.StatusOK, experiments)
}

// ListForFlag handles GET /api/experiments/flag/{flagId}.
func (h *ExperimentHandler) ListForFlag(w http.ResponseWriter, r *http.Request) {
	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	experiments, err := h.experimentService.ListExperimentsForFlag(r.Context(), flagID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if experiments == nil {
		experiments = []*models.Experiment{}
	}

	SuccessResponse(w, http.StatusOK, experiments)
}

// Get handles GET /api/experiments/{experimentId}.
func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	experimentID, err := ParseExperimentID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	experiment, err := h.experimentService.GetExperiment(r.Context(), experimentID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, experiment)
}

// Update handles PUT /api/experiments/{experimentId}.
func (h *ExperimentHandler) Update(w http.ResponseWriter, r *http.Request) {
	experimentID, err := ParseExperimentID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	experiment := &models.Experiment{
		ID:                 experimentID,
		Name:               req.Name,
		Description:        req.Description,
		Status:             req.Status,
		VariantAPercentage: req.VariantAPercentage,
		VariantBPercentage: req.VariantBPercentage,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
	}

	if err := h.experimentService.UpdateExperiment(r.Context(), experiment); err != nil {
		h.logger.Error("failed to update experiment", zap.String("experiment_id", experimentID.String()), zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, experiment)
}

// Delete handles DELETE /api/experiments/{experimentId}.
func (h *ExperimentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	experimentID, err := ParseExperimentID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.experimentService.DeleteExperiment(r.Context(), experimentID); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "experiment deleted",
	})
}

// ListAssignments handles GET /api/experiments/{experimentId}/assignments.
func (h *ExperimentHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	experimentID, err := ParseExperimentID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	assignments, err := h.experimentService.ListAssignments(r.Context(), experimentID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if assignments == nil {
		assignments = []*models.Assignment{}
	}

	SuccessResponse(w, http.StatusOK, assignments)
}

// Assign handles POST /api/experiments/{experimentId}/assign/{userId}.
// The user segment is the external identifier; unknown users are created.
func (h *ExperimentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	experimentID, err := ParseExperimentID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	externalUserID := r.PathValue("userId")
	if externalUserID == "" {
		ErrorResponse(w, http.StatusBadRequest, "user identifier is required")
		return
	}

	experiment, err := h.experimentService.GetExperiment(r.Context(), experimentID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	assignment, err := h.evaluationService.AssignToExperiment(r.Context(), experiment, externalUserID)
	if err != nil {
		h.logger.Error("failed to assign user",
			zap.String("experiment_id", experimentID.String()),
			zap.String("user", externalUserID),
			zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, assignment)
}
