package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/repositories"
)

// Function-field mocks. A nil field means the call is unexpected for the
// scenario and panics, which points straight at the test that needs fixing.

type mockFlagRepository struct {
	createFunc   func(ctx context.Context, flag *models.FeatureFlag) error
	getByIDFunc  func(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error)
	getByKeyFunc func(ctx context.Context, key string) (*models.FeatureFlag, error)
	listFunc     func(ctx context.Context) ([]*models.FeatureFlag, error)
	updateFunc   func(ctx context.Context, flag *models.FeatureFlag) error
	deleteFunc   func(ctx context.Context, id uuid.UUID) error
}

func (m *mockFlagRepository) Create(ctx context.Context, flag *models.FeatureFlag) error {
	return m.createFunc(ctx, flag)
}

func (m *mockFlagRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockFlagRepository) GetByKey(ctx context.Context, key string) (*models.FeatureFlag, error) {
	return m.getByKeyFunc(ctx, key)
}

func (m *mockFlagRepository) List(ctx context.Context) ([]*models.FeatureFlag, error) {
	return m.listFunc(ctx)
}

func (m *mockFlagRepository) Update(ctx context.Context, flag *models.FeatureFlag) error {
	return m.updateFunc(ctx, flag)
}

func (m *mockFlagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

var _ repositories.FlagRepository = (*mockFlagRepository)(nil)

type mockExperimentRepository struct {
	createFunc           func(ctx context.Context, exp *models.Experiment) error
	getByIDFunc          func(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	listFunc             func(ctx context.Context) ([]*models.Experiment, error)
	getByFlagFunc        func(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error)
	getActiveForFlagFunc func(ctx context.Context, flagID uuid.UUID, now time.Time) (*models.Experiment, error)
	updateFunc           func(ctx context.Context, exp *models.Experiment) error
	deleteFunc           func(ctx context.Context, id uuid.UUID) error
}

func (m *mockExperimentRepository) Create(ctx context.Context, exp *models.Experiment) error {
	return m.createFunc(ctx, exp)
}

func (m *mockExperimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockExperimentRepository) List(ctx context.Context) ([]*models.Experiment, error) {
	return m.listFunc(ctx)
}

func (m *mockExperimentRepository) GetByFlag(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error) {
	return m.getByFlagFunc(ctx, flagID)
}

func (m *mockExperimentRepository) GetActiveForFlag(ctx context.Context, flagID uuid.UUID, now time.Time) (*models.Experiment, error) {
	return m.getActiveForFlagFunc(ctx, flagID, now)
}

func (m *mockExperimentRepository) Update(ctx context.Context, exp *models.Experiment) error {
	return m.updateFunc(ctx, exp)
}

func (m *mockExperimentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

var _ repositories.ExperimentRepository = (*mockExperimentRepository)(nil)

type mockUserRepository struct {
	createFunc          func(ctx context.Context, user *models.User) error
	getByIDFunc         func(ctx context.Context, id uuid.UUID) (*models.User, error)
	getByExternalIDFunc func(ctx context.Context, externalID string) (*models.User, error)
	listFunc            func(ctx context.Context) ([]*models.User, error)
	updateFunc          func(ctx context.Context, user *models.User) error
	deleteFunc          func(ctx context.Context, id uuid.UUID) error
	ensureFunc          func(ctx context.Context, externalID string) (*models.User, error)
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.createFunc(ctx, user)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return m.getByExternalIDFunc(ctx, externalID)
}

func (m *mockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	return m.listFunc(ctx)
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error {
	return m.updateFunc(ctx, user)
}

func (m *mockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockUserRepository) Ensure(ctx context.Context, externalID string) (*models.User, error) {
	return m.ensureFunc(ctx, externalID)
}

var _ repositories.UserRepository = (*mockUserRepository)(nil)

type mockAssignmentRepository struct {
	getFunc              func(ctx context.Context, experimentID, userID uuid.UUID) (*models.Assignment, error)
	createFunc           func(ctx context.Context, assignment *models.Assignment) error
	getOrCreateFunc      func(ctx context.Context, experimentID, userID uuid.UUID, variant string) (*models.Assignment, error)
	listByExperimentFunc func(ctx context.Context, experimentID uuid.UUID) ([]*models.Assignment, error)
}

func (m *mockAssignmentRepository) Get(ctx context.Context, experimentID, userID uuid.UUID) (*models.Assignment, error) {
	return m.getFunc(ctx, experimentID, userID)
}

func (m *mockAssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return m.createFunc(ctx, assignment)
}

func (m *mockAssignmentRepository) GetOrCreate(ctx context.Context, experimentID, userID uuid.UUID, variant string) (*models.Assignment, error) {
	return m.getOrCreateFunc(ctx, experimentID, userID, variant)
}

func (m *mockAssignmentRepository) ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]*models.Assignment, error) {
	return m.listByExperimentFunc(ctx, experimentID)
}

var _ repositories.AssignmentRepository = (*mockAssignmentRepository)(nil)

type mockEventRepository struct {
	createFunc           func(ctx context.Context, event *models.FlagEvent) error
	listFunc             func(ctx context.Context, limit int) ([]*models.FlagEvent, error)
	dashboardSummaryFunc func(ctx context.Context) (*models.DashboardSummary, error)
	topFlagsFunc         func(ctx context.Context, limit int) ([]*models.TopFlag, error)
	flagMetricsFunc      func(ctx context.Context, flagID uuid.UUID) (*models.FlagMetrics, error)
}

func (m *mockEventRepository) Create(ctx context.Context, event *models.FlagEvent) error {
	return m.createFunc(ctx, event)
}

func (m *mockEventRepository) List(ctx context.Context, limit int) ([]*models.FlagEvent, error) {
	return m.listFunc(ctx, limit)
}

func (m *mockEventRepository) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	return m.dashboardSummaryFunc(ctx)
}

func (m *mockEventRepository) TopFlags(ctx context.Context, limit int) ([]*models.TopFlag, error) {
	return m.topFlagsFunc(ctx, limit)
}

func (m *mockEventRepository) FlagMetrics(ctx context.Context, flagID uuid.UUID) (*models.FlagMetrics, error) {
	return m.flagMetricsFunc(ctx, flagID)
}

var _ repositories.EventRepository = (*mockEventRepository)(nil)
