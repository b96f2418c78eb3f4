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
)

// UserService handles user and per-user flag override business logic.
type UserService struct {
	userRepo     repositories.UserRepository
	userFlagRepo repositories.UserFlagAssignmentRepository
	flagRepo     repositories.FlagRepository
	logger       *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	userRepo repositories.UserRepository,
	userFlagRepo repositories.UserFlagAssignmentRepository,
	flagRepo repositories.FlagRepository,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		userFlagRepo: userFlagRepo,
		flagRepo:     flagRepo,
		logger:       logger.Named("user-service"),
	}
}

// CreateUser validates and creates a new user.
func (s *UserService) CreateUser(ctx context.Context, user *models.User) error {
	user.ExternalID = strings.TrimSpace(user.ExternalID)
	if user.ExternalID == "" {
		return fmt.Errorf("%w: user_id is required", apperrors.ErrValidation)
	}
	if user.Attributes == nil {
		user.Attributes = models.JSONBMap{}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info("created user",
		zap.String("user_id", user.ID.String()),
		zap.String("external_id", user.ExternalID))
	return nil
}

// GetUser retrieves a user by internal ID.
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

// EnsureUser returns the user with the given external identifier, creating
// an empty record on first sight. Safe under concurrent first evaluations of
// the same user.
func (s *UserService) EnsureUser(ctx context.Context, externalID string) (*models.User, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: user identifier is required", apperrors.ErrValidation)
	}
	return s.userRepo.Ensure(ctx, externalID)
}

// ListUsers retrieves all users.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.List(ctx)
}

// UpdateUser updates a user's mutable fields. The external identifier is
// immutable.
func (s *UserService) UpdateUser(ctx context.Context, user *models.User) error {
	existing, err := s.userRepo.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}
	user.ExternalID = existing.ExternalID
	if user.Attributes == nil {
		user.Attributes = existing.Attributes
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.logger.Info("updated user", zap.String("user_id", user.ID.String()))
	return nil
}

// DeleteUser removes a user and, by cascade, their assignments and overrides.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	existing, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrNotFound
	}

	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("deleted user", zap.String("user_id", id.String()))
	return nil
}

// SetFlagOverride sets or replaces a manual flag override for a user.
// Overrides are an admin bookkeeping record; evaluation does not consult them.
func (s *UserService) SetFlagOverride(ctx context.Context, userID, flagID uuid.UUID, enabled bool) (*models.UserFlagAssignment, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}

	flag, err := s.flagRepo.GetByID(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, fmt.Errorf("%w: flag %s does not exist", apperrors.ErrValidation, flagID)
	}

	assignment := &models.UserFlagAssignment{
		UserID:  userID,
		FlagID:  flagID,
		Enabled: enabled,
	}
	if err := s.userFlagRepo.Upsert(ctx, assignment); err != nil {
		return nil, err
	}

	s.logger.Info("set user flag override",
		zap.String("user_id", userID.String()),
		zap.String("flag_id", flagID.String()),
		zap.Bool("enabled", enabled))
	return assignment, nil
}

// ListFlagOverrides retrieves all flag overrides for a user.
func (s *UserService) ListFlagOverrides(ctx context.Context, userID uuid.UUID) ([]*models.UserFlagAssignment, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}
	return s.userFlagRepo.ListForUser(ctx, userID)
}

// RemoveFlagOverride deletes a user's override for a flag.
func (s *UserService) RemoveFlagOverride(ctx context.Context, userID, flagID uuid.UUID) error {
	return s.userFlagRepo.Delete(ctx, userID, flagID)
}
