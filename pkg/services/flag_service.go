package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/cache"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
)

// FlagService handles feature flag business logic.
type FlagService struct {
	flagRepo  repositories.FlagRepository
	flagCache *cache.FlagCache
	logger    *zap.Logger
}

// NewFlagService creates a new flag service.
func NewFlagService(flagRepo repositories.FlagRepository, flagCache *cache.FlagCache, logger *zap.Logger) *FlagService {
	return &FlagService{
		flagRepo:  flagRepo,
		flagCache: flagCache,
		logger:    logger.Named("flag-service"),
	}
}

// CreateFlag validates and creates a new feature flag.
func (s *FlagService) CreateFlag(ctx context.Context, flag *models.FeatureFlag) error {
	flag.Key = strings.TrimSpace(flag.Key)
	flag.Name = strings.TrimSpace(flag.Name)

	if flag.Key == "" {
		return fmt.Errorf("%w: flag key is required", apperrors.ErrValidation)
	}
	if flag.Name == "" {
		return fmt.Errorf("%w: flag name is required", apperrors.ErrValidation)
	}

	if err := s.flagRepo.Create(ctx, flag); err != nil {
		return err
	}

	s.logger.Info("created feature flag",
		zap.String("flag_id", flag.ID.String()),
		zap.String("key", flag.Key))
	return nil
}

// GetFlag retrieves a flag by ID.
func (s *FlagService) GetFlag(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error) {
	flag, err := s.flagRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, apperrors.ErrNotFound
	}
	return flag, nil
}

// ResolveFlag looks up a flag by key first, then falls back to treating the
// identifier as a UUID. Keys that happen to parse as UUIDs still resolve by
// key when a matching key exists.
func (s *FlagService) ResolveFlag(ctx context.Context, idOrKey string) (*models.FeatureFlag, error) {
	if cached, _ := s.flagCache.Get(ctx, idOrKey); cached != nil {
		return cached, nil
	}

	flag, err := s.flagRepo.GetByKey(ctx, idOrKey)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		id, parseErr := uuid.Parse(idOrKey)
		if parseErr != nil {
			return nil, apperrors.ErrNotFound
		}
		flag, err = s.flagRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if flag == nil {
			return nil, apperrors.ErrNotFound
		}
	}

	if err := s.flagCache.Set(ctx, flag); err != nil {
		s.logger.Warn("failed to cache flag", zap.String("key", flag.Key), zap.Error(err))
	}

	return flag, nil
}

// ListFlags retrieves all feature flags.
func (s *FlagService) ListFlags(ctx context.Context) ([]*models.FeatureFlag, error) {
	return s.flagRepo.List(ctx)
}

// UpdateFlag updates a flag's mutable fields. The key is immutable.
func (s *FlagService) UpdateFlag(ctx context.Context, flag *models.FeatureFlag) error {
	flag.Name = strings.TrimSpace(flag.Name)
	if flag.Name == "" {
		return fmt.Errorf("%w: flag name is required", apperrors.ErrValidation)
	}

	existing, err := s.flagRepo.GetByID(ctx, flag.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}
	flag.Key = existing.Key

	if err := s.flagRepo.Update(ctx, flag); err != nil {
		return err
	}

	if err := s.flagCache.Invalidate(ctx, flag.Key); err != nil {
		s.logger.Warn("failed to invalidate flag cache", zap.String("key", flag.Key), zap.Error(err))
	}

	s.logger.Info("updated feature flag",
		zap.String("flag_id", flag.ID.String()),
		zap.Bool("enabled", flag.Enabled))
	return nil
}

// DeleteFlag removes a flag. Experiments and events referencing it are
// removed by cascade.
func (s *FlagService) DeleteFlag(ctx context.Context, id uuid.UUID) error {
	existing, err := s.flagRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	if err := s.flagRepo.Delete(ctx, id); err != nil {
		return err
	}

	if err := s.flagCache.Invalidate(ctx, existing.Key); err != nil {
		s.logger.Warn("failed to invalidate flag cache", zap.String("key", existing.Key), zap.Error(err))
	}

	s.logger.Info("deleted feature flag", zap.String("flag_id", id.String()))
	return nil
}
