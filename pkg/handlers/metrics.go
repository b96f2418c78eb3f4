package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/services"
)

// MetricsHandler handles event tracking and metrics endpoints.
type MetricsHandler struct {
	metricsService *services.MetricsService
	logger         *zap.Logger
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(metricsService *services.MetricsService, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		metricsService: metricsService,
		logger:         logger.Named("metrics-handler"),
	}
}

// TrackEventRequest is the request body for tracking a flag event.
type TrackEventRequest struct {
	FlagID    uuid.UUID       `json:"flag_id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	EventType string          `json:"event_type"`
	Metadata  models.JSONBMap `json:"metadata,omitempty"`
}

// TrackEvent handles POST /api/metrics/events.
func (h *MetricsHandler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var req TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event := &models.FlagEvent{
		FlagID:    req.FlagID,
		UserID:    req.UserID,
		EventType: req.EventType,
		Metadata:  req.Metadata,
	}

	if err := h.metricsService.TrackEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to track event", zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusCreated, event)
}

// ListEvents handles GET /api/metrics/events.
func (h *MetricsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.metricsService.ListEvents(r.Context())
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		HandleServiceError(w, err)
		return
	}
	if events == nil {
		events = []*models.FlagEvent{}
	}

	SuccessResponse(w, http.StatusOK, events)
}

// Dashboard handles GET /api/metrics/dashboard.
func (h *MetricsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.metricsService.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard", zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, data)
}

// FlagMetrics handles GET /api/metrics/flags/{flagId}.
func (h *MetricsHandler) FlagMetrics(w http.ResponseWriter, r *http.Request) {
	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics, err := h.metricsService.FlagMetrics(r.Context(), flagID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, metrics)
}
