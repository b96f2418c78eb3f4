package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/bucketing"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
)

// EvaluationResult is the answer to "what does this user see for this flag".
// Variant and ExperimentName are only present when an active experiment
// produced an assignment.
type EvaluationResult struct {
	FlagEnabled    bool    `json:"flagEnabled"`
	Variant        *string `json:"variant,omitempty"`
	ExperimentName *string `json:"experimentName,omitempty"`
}

// EvaluationService computes flag evaluations. Evaluation is deterministic:
// the same (experiment, user) pair always lands in the same bucket, and the
// first recorded assignment wins forever regardless of later percentage
// changes.
type EvaluationService struct {
	flagService    *FlagService
	userRepo       repositories.UserRepository
	experimentRepo repositories.ExperimentRepository
	assignmentRepo repositories.AssignmentRepository
	logger         *zap.Logger
}

// NewEvaluationService creates a new evaluation service.
func NewEvaluationService(
	flagService *FlagService,
	userRepo repositories.UserRepository,
	experimentRepo repositories.ExperimentRepository,
	assignmentRepo repositories.AssignmentRepository,
	logger *zap.Logger,
) *EvaluationService {
	return &EvaluationService{
		flagService:    flagService,
		userRepo:       userRepo,
		experimentRepo: experimentRepo,
		assignmentRepo: assignmentRepo,
		logger:         logger.Named("evaluation-service"),
	}
}

// Evaluate resolves a flag for a user.
//
// Disabled flags short-circuit to flagEnabled=false with no side effects: no
// user is created and no assignment is recorded. An enabled flag with no
// active experiment returns flagEnabled=true with no variant. An enabled
// flag with an active experiment ensures the user exists, then returns the
// existing assignment or buckets the user and records a new one.
func (s *EvaluationService) Evaluate(ctx context.Context, flagIDOrKey, externalUserID string) (*EvaluationResult, error) {
	flag, err := s.flagService.ResolveFlag(ctx, flagIDOrKey)
	if err != nil {
		return nil, err
	}

	if !flag.Enabled {
		return &EvaluationResult{FlagEnabled: false}, nil
	}

	experiment, err := s.experimentRepo.GetActiveForFlag(ctx, flag.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if experiment == nil {
		return &EvaluationResult{FlagEnabled: true}, nil
	}

	user, err := s.userRepo.Ensure(ctx, externalUserID)
	if err != nil {
		return nil, err
	}

	assignment, err := s.assignmentRepo.Get(ctx, experiment.ID, user.ID)
	if err != nil {
		return nil, err
	}

	if assignment == nil {
		hash := bucketing.Hash(experiment.ID.String(), user.ExternalID)
		variant, err := bucketing.AssignVariant(hash, experiment.VariantAPercentage)
		if err != nil {
			return nil, err
		}

		// A concurrent evaluation may have won; GetOrCreate returns whichever
		// row is durable so all callers see one variant.
		assignment, err = s.assignmentRepo.GetOrCreate(ctx, experiment.ID, user.ID, variant)
		if err != nil {
			return nil, err
		}

		s.logger.Info("assigned variant",
			zap.String("experiment_id", experiment.ID.String()),
			zap.String("user", user.ExternalID),
			zap.String("variant", assignment.Variant),
			zap.Int("hash", hash))
	}

	return &EvaluationResult{
		FlagEnabled:    true,
		Variant:        &assignment.Variant,
		ExperimentName: &experiment.Name,
	}, nil
}

// AssignToExperiment buckets a user into a specific experiment regardless of
// the owning flag's enabled state. Used by the admin assignment endpoint.
// Returns the recorded assignment, which may predate this call.
func (s *EvaluationService) AssignToExperiment(ctx context.Context, experiment *models.Experiment, externalUserID string) (*models.Assignment, error) {
	user, err := s.userRepo.Ensure(ctx, externalUserID)
	if err != nil {
		return nil, err
	}

	existing, err := s.assignmentRepo.Get(ctx, experiment.ID, user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	hash := bucketing.Hash(experiment.ID.String(), user.ExternalID)
	variant, err := bucketing.AssignVariant(hash, experiment.VariantAPercentage)
	if err != nil {
		return nil, err
	}

	return s.assignmentRepo.GetOrCreate(ctx, experiment.ID, user.ID, variant)
}
