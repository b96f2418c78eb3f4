package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
)

// percentageEpsilon bounds float drift when checking that the two variant
// percentages sum to 100.
const percentageEpsilon = 1e-9

// validTransitions enumerates the allowed experiment status transitions.
// Completed is terminal.
var validTransitions = map[string][]string{
	models.ExperimentStatusDraft:   {models.ExperimentStatusRunning, models.ExperimentStatusPaused, models.ExperimentStatusCompleted},
	models.ExperimentStatusRunning: {models.ExperimentStatusPaused, models.ExperimentStatusCompleted},
	models.ExperimentStatusPaused:  {models.ExperimentStatusRunning, models.ExperimentStatusCompleted},
}

// ExperimentService handles experiment business logic: percentage and
// lifecycle validation on top of the repository.
type ExperimentService struct {
	experimentRepo repositories.ExperimentRepository
	flagRepo       repositories.FlagRepository
	assignmentRepo repositories.AssignmentRepository
	logger         *zap.Logger
}

// NewExperimentService creates a new experiment service.
func NewExperimentService(
	experimentRepo repositories.ExperimentRepository,
	flagRepo repositories.FlagRepository,
	assignmentRepo repositories.AssignmentRepository,
	logger *zap.Logger,
) *ExperimentService {
	return &ExperimentService{
		experimentRepo: experimentRepo,
		flagRepo:       flagRepo,
		assignmentRepo: assignmentRepo,
		logger:         logger.Named("experiment-service"),
	}
}

func validatePercentages(a, b float64) error {
	if math.IsNaN(a) || math.IsNaN(b) {
		return fmt.Errorf("%w: variant percentages must be numbers", apperrors.ErrValidation)
	}
	if a < 0 || a > 100 || b < 0 || b > 100 {
		return fmt.Errorf("%w: variant percentages must be between 0 and 100", apperrors.ErrValidation)
	}
	if math.Abs(a+b-100) > percentageEpsilon {
		return fmt.Errorf("%w: variant percentages must sum to 100, got %.2f", apperrors.ErrValidation, a+b)
	}
	return nil
}

func validateDates(e *models.Experiment) error {
	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return fmt.Errorf("%w: end date must not precede start date", apperrors.ErrValidation)
	}
	return nil
}

// CreateExperiment validates and creates a new experiment. New experiments
// default to draft.
func (s *ExperimentService) CreateExperiment(ctx context.Context, experiment *models.Experiment) error {
	experiment.Name = strings.TrimSpace(experiment.Name)
	if experiment.Name == "" {
		return fmt.Errorf("%w: experiment name is required", apperrors.ErrValidation)
	}

	if experiment.Status == "" {
		experiment.Status = models.ExperimentStatusDraft
	}
	if !models.IsValidStatus(experiment.Status) {
		return fmt.Errorf("%w: invalid experiment status %q", apperrors.ErrValidation, experiment.Status)
	}

	if err := validatePercentages(experiment.VariantAPercentage, experiment.VariantBPercentage); err != nil {
		return err
	}
	if err := validateDates(experiment); err != nil {
		return err
	}

	flag, err := s.flagRepo.GetByID(ctx, experiment.FlagID)
	if err != nil {
		return err
	}
	if flag == nil {
		return fmt.Errorf("%w: flag %s does not exist", apperrors.ErrValidation, experiment.FlagID)
	}

	if err := s.experimentRepo.Create(ctx, experiment); err != nil {
		return err
	}

	s.logger.Info("created experiment",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("flag_id", experiment.FlagID.String()),
		zap.Float64("variant_a_percentage", experiment.VariantAPercentage))
	return nil
}

// GetExperiment retrieves an experiment by ID.
func (s *ExperimentService) GetExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	experiment, err := s.experimentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if experiment == nil {
		return nil, apperrors.ErrNotFound
	}
	return experiment, nil
}

// ListExperiments retrieves all experiments.
func (s *ExperimentService) ListExperiments(ctx context.Context) ([]*models.Experiment, error) {
	return s.experimentRepo.List(ctx)
}

// ListExperimentsForFlag retrieves all experiments attached to a flag.
func (s *ExperimentService) ListExperimentsForFlag(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error) {
	return s.experimentRepo.GetByFlag(ctx, flagID)
}

// UpdateExperiment updates an experiment, enforcing the status lifecycle.
// Percentage changes never rewrite existing assignments; only users
// evaluated after the change are bucketed against the new split.
func (s *ExperimentService) UpdateExperiment(ctx context.Context, experiment *models.Experiment) error {
	existing, err := s.experimentRepo.GetByID(ctx, experiment.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	experiment.Name = strings.TrimSpace(experiment.Name)
	if experiment.Name == "" {
		return fmt.Errorf("%w: experiment name is required", apperrors.ErrValidation)
	}
	if err := validatePercentages(experiment.VariantAPercentage, experiment.VariantBPercentage); err != nil {
		return err
	}
	if err := validateDates(experiment); err != nil {
		return err
	}

	if experiment.Status != existing.Status {
		if err := checkTransition(existing.Status, experiment.Status); err != nil {
			return err
		}
	}

	experiment.FlagID = existing.FlagID

	if err := s.experimentRepo.Update(ctx, experiment); err != nil {
		return err
	}

	s.logger.Info("updated experiment",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("status", experiment.Status))
	return nil
}

func checkTransition(from, to string) error {
	if !models.IsValidStatus(to) {
		return fmt.Errorf("%w: invalid experiment status %q", apperrors.ErrValidation, to)
	}
	for _, allowed := range validTransitions[from] {
		if to == allowed {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition experiment from %s to %s", apperrors.ErrInvalidTransition, from, to)
}

// DeleteExperiment removes an experiment and, by cascade, its assignments.
func (s *ExperimentService) DeleteExperiment(ctx context.Context, id uuid.UUID) error {
	existing, err := s.experimentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	if err := s.experimentRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted experiment", zap.String("experiment_id", id.String()))
	return nil
}

// ListAssignments retrieves all recorded assignments for an experiment.
func (s *ExperimentService) ListAssignments(ctx context.Context, experimentID uuid.UUID) ([]*models.Assignment, error) {
	experiment, err := s.experimentRepo.GetByID(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if experiment == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.assignmentRepo.ListByExperiment(ctx, experimentID)
}
