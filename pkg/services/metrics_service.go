package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
	"github.com/variantlab/variant-engine/pkg/retry"
)

const (
	defaultEventListLimit = 100
	topFlagsLimit         = 5
)

// DashboardData bundles the summary counts with the trailing-week top flags.
type DashboardData struct {
	Summary  *models.DashboardSummary `json:"summary"`
	TopFlags []*models.TopFlag        `json:"topFlags"`
}

// MetricsService handles event tracking and metrics aggregation.
type MetricsService struct {
	eventRepo repositories.EventRepository
	flagRepo  repositories.FlagRepository
	logger    *zap.Logger
}

// NewMetricsService creates a new metrics service.
func NewMetricsService(eventRepo repositories.EventRepository, flagRepo repositories.FlagRepository, logger *zap.Logger) *MetricsService {
	return &MetricsService{
		eventRepo: eventRepo,
		flagRepo:  flagRepo,
		logger:    logger.Named("metrics-service"),
	}
}

// TrackEvent records a flag event.
func (s *MetricsService) TrackEvent(ctx context.Context, event *models.FlagEvent) error {
	event.EventType = strings.TrimSpace(event.EventType)
	if event.EventType == "" {
		return fmt.Errorf("%w: event type is required", apperrors.ErrValidation)
	}
	if event.Metadata == nil {
		event.Metadata = models.JSONBMap{}
	}

	flag, err := s.flagRepo.GetByID(ctx, event.FlagID)
	if err != nil {
		return err
	}
	if flag == nil {
		return fmt.Errorf("%w: flag %s does not exist", apperrors.ErrValidation, event.FlagID)
	}

	// Event writes are append-only and idempotent enough to retry through
	// transient storage failures; permanent errors surface immediately.
	return retry.Do(ctx, nil, func() error {
		return s.eventRepo.Create(ctx, event)
	})
}

// ListEvents retrieves the most recent events.
func (s *MetricsService) ListEvents(ctx context.Context) ([]*models.FlagEvent, error) {
	return s.eventRepo.List(ctx, defaultEventListLimit)
}

// Dashboard aggregates the headline counts and top flags for the dashboard.
func (s *MetricsService) Dashboard(ctx context.Context) (*DashboardData, error) {
	summary, err := s.eventRepo.DashboardSummary(ctx)
	if err != nil {
		return nil, err
	}

	topFlags, err := s.eventRepo.TopFlags(ctx, topFlagsLimit)
	if err != nil {
		return nil, err
	}
	if topFlags == nil {
		topFlags = []*models.TopFlag{}
	}

	return &DashboardData{Summary: summary, TopFlags: topFlags}, nil
}

// FlagMetrics aggregates events for a single flag.
func (s *MetricsService) FlagMetrics(ctx context.Context, flagID uuid.UUID) (*models.FlagMetrics, error) {
	flag, err := s.flagRepo.GetByID(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, apperrors.ErrNotFound
	}

	return s.eventRepo.FlagMetrics(ctx, flagID)
}
