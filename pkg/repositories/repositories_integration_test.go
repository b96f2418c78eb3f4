//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/bucketing"
	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/testhelpers"
)

func createTestFlag(t *testing.T, repo FlagRepository, key string) *models.FeatureFlag {
	t.Helper()

	flag := &models.FeatureFlag{
		Key:     key,
		Name:    "Test " + key,
		Enabled: true,
	}
	require.NoError(t, repo.Create(context.Background(), flag))
	return flag
}

func createTestExperiment(t *testing.T, repo ExperimentRepository, flagID uuid.UUID) *models.Experiment {
	t.Helper()

	experiment := &models.Experiment{
		FlagID:             flagID,
		Name:               "test experiment",
		Status:             models.ExperimentStatusRunning,
		VariantAPercentage: 50,
		VariantBPercentage: 50,
	}
	require.NoError(t, repo.Create(context.Background(), experiment))
	return experiment
}

func TestFlagRepositoryCRUD(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewFlagRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, repo, fmt.Sprintf("crud-%s", uuid.NewString()))
	require.NotEqual(t, uuid.Nil, flag.ID)

	got, err := repo.GetByID(ctx, flag.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, flag.Key, got.Key)

	byKey, err := repo.GetByKey(ctx, flag.Key)
	require.NoError(t, err)
	require.NotNil(t, byKey)
	require.Equal(t, flag.ID, byKey.ID)

	got.Enabled = false
	got.Name = "renamed"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.GetByID(ctx, flag.ID)
	require.NoError(t, err)
	require.False(t, updated.Enabled)
	require.Equal(t, "renamed", updated.Name)

	require.NoError(t, repo.Delete(ctx, flag.ID))

	gone, err := repo.GetByID(ctx, flag.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	require.ErrorIs(t, repo.Delete(ctx, flag.ID), apperrors.ErrNotFound)
}

func TestFlagRepositoryDuplicateKey(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewFlagRepository(db.DB)

	key := fmt.Sprintf("dup-%s", uuid.NewString())
	createTestFlag(t, repo, key)

	err := repo.Create(context.Background(), &models.FeatureFlag{Key: key, Name: "Duplicate"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUserRepositoryEnsureIdempotent(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewUserRepository(db.DB)
	ctx := context.Background()

	externalID := fmt.Sprintf("ensure-%s", uuid.NewString())

	first, err := repo.Ensure(ctx, externalID)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := repo.Ensure(ctx, externalID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAssignmentRepositoryUniqueness(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	experimentRepo := NewExperimentRepository(db.DB)
	userRepo := NewUserRepository(db.DB)
	assignmentRepo := NewAssignmentRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("uniq-%s", uuid.NewString()))
	experiment := createTestExperiment(t, experimentRepo, flag.ID)
	user, err := userRepo.Ensure(ctx, fmt.Sprintf("user-%s", uuid.NewString()))
	require.NoError(t, err)

	first := &models.Assignment{
		ExperimentID: experiment.ID,
		UserID:       user.ID,
		Variant:      bucketing.VariantA,
	}
	require.NoError(t, assignmentRepo.Create(ctx, first))

	dup := &models.Assignment{
		ExperimentID: experiment.ID,
		UserID:       user.ID,
		Variant:      bucketing.VariantB,
	}
	require.ErrorIs(t, assignmentRepo.Create(ctx, dup), apperrors.ErrDuplicateAssignment)

	stored, err := assignmentRepo.Get(ctx, experiment.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, bucketing.VariantA, stored.Variant)
}

// Many concurrent GetOrCreate calls for the same pair must all observe one
// durable variant.
func TestAssignmentRepositoryGetOrCreateConcurrent(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	experimentRepo := NewExperimentRepository(db.DB)
	userRepo := NewUserRepository(db.DB)
	assignmentRepo := NewAssignmentRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("race-%s", uuid.NewString()))
	experiment := createTestExperiment(t, experimentRepo, flag.ID)
	user, err := userRepo.Ensure(ctx, fmt.Sprintf("user-%s", uuid.NewString()))
	require.NoError(t, err)

	const workers = 20
	results := make([]*models.Assignment, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Half the workers race with "A", half with "B"; only one value
			// can win.
			variant := bucketing.VariantA
			if i%2 == 1 {
				variant = bucketing.VariantB
			}
			results[i], errs[i] = assignmentRepo.GetOrCreate(ctx, experiment.ID, user.ID, variant)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		require.Equal(t, results[0].Variant, results[i].Variant, "worker %d saw a different variant", i)
		require.Equal(t, results[0].ID, results[i].ID, "worker %d saw a different row", i)
	}

	assignments, err := assignmentRepo.ListByExperiment(ctx, experiment.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
}

func TestExperimentRepositoryGetActiveForFlag(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	experimentRepo := NewExperimentRepository(db.DB)
	ctx := context.Background()
	now := time.Now()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("active-%s", uuid.NewString()))

	// Draft experiments are never active.
	draft := &models.Experiment{
		FlagID:             flag.ID,
		Name:               "draft",
		Status:             models.ExperimentStatusDraft,
		VariantAPercentage: 50,
		VariantBPercentage: 50,
	}
	require.NoError(t, experimentRepo.Create(ctx, draft))

	active, err := experimentRepo.GetActiveForFlag(ctx, flag.ID, now)
	require.NoError(t, err)
	require.Nil(t, active)

	running := createTestExperiment(t, experimentRepo, flag.ID)

	active, err = experimentRepo.GetActiveForFlag(ctx, flag.ID, now)
	require.NoError(t, err)
	require.NotNil(t, active)
	require.Equal(t, running.ID, active.ID)

	// A running experiment whose window has closed is not active.
	past := now.Add(-48 * time.Hour)
	ended := now.Add(-24 * time.Hour)
	running.StartDate = &past
	running.EndDate = &ended
	require.NoError(t, experimentRepo.Update(ctx, running))

	active, err = experimentRepo.GetActiveForFlag(ctx, flag.ID, now)
	require.NoError(t, err)
	require.Nil(t, active)
}

func TestDeleteFlagCascadesToExperimentsAndAssignments(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	experimentRepo := NewExperimentRepository(db.DB)
	userRepo := NewUserRepository(db.DB)
	assignmentRepo := NewAssignmentRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("cascade-%s", uuid.NewString()))
	experiment := createTestExperiment(t, experimentRepo, flag.ID)
	user, err := userRepo.Ensure(ctx, fmt.Sprintf("user-%s", uuid.NewString()))
	require.NoError(t, err)

	_, err = assignmentRepo.GetOrCreate(ctx, experiment.ID, user.ID, bucketing.VariantA)
	require.NoError(t, err)

	require.NoError(t, flagRepo.Delete(ctx, flag.ID))

	gone, err := experimentRepo.GetByID(ctx, experiment.ID)
	require.NoError(t, err)
	require.Nil(t, gone)

	assignment, err := assignmentRepo.Get(ctx, experiment.ID, user.ID)
	require.NoError(t, err)
	require.Nil(t, assignment)
}

func TestUserFlagAssignmentRepositoryUpsert(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	userRepo := NewUserRepository(db.DB)
	overrideRepo := NewUserFlagAssignmentRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("override-%s", uuid.NewString()))
	user, err := userRepo.Ensure(ctx, fmt.Sprintf("user-%s", uuid.NewString()))
	require.NoError(t, err)

	first := &models.UserFlagAssignment{UserID: user.ID, FlagID: flag.ID, Enabled: true}
	require.NoError(t, overrideRepo.Upsert(ctx, first))

	second := &models.UserFlagAssignment{UserID: user.ID, FlagID: flag.ID, Enabled: false}
	require.NoError(t, overrideRepo.Upsert(ctx, second))

	overrides, err := overrideRepo.ListForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	require.False(t, overrides[0].Enabled)

	require.NoError(t, overrideRepo.Delete(ctx, user.ID, flag.ID))
	require.ErrorIs(t, overrideRepo.Delete(ctx, user.ID, flag.ID), apperrors.ErrNotFound)
}

func TestEventRepositoryAggregates(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	flagRepo := NewFlagRepository(db.DB)
	userRepo := NewUserRepository(db.DB)
	eventRepo := NewEventRepository(db.DB)
	ctx := context.Background()

	flag := createTestFlag(t, flagRepo, fmt.Sprintf("events-%s", uuid.NewString()))
	user, err := userRepo.Ensure(ctx, fmt.Sprintf("user-%s", uuid.NewString()))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, eventRepo.Create(ctx, &models.FlagEvent{
			FlagID:    flag.ID,
			UserID:    &user.ID,
			EventType: "evaluation",
			Metadata:  models.JSONBMap{},
		}))
	}
	require.NoError(t, eventRepo.Create(ctx, &models.FlagEvent{
		FlagID:    flag.ID,
		EventType: "exposure",
		Metadata:  models.JSONBMap{},
	}))

	metrics, err := eventRepo.FlagMetrics(ctx, flag.ID)
	require.NoError(t, err)
	require.Equal(t, 4, metrics.TotalEvents)
	require.Equal(t, 3, metrics.EventsByType["evaluation"])
	require.Equal(t, 1, metrics.EventsByType["exposure"])
	require.Equal(t, 1, metrics.UniqueUsers)
	require.NotEmpty(t, metrics.EventsByDay)

	summary, err := eventRepo.DashboardSummary(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, summary.TotalFlags, 1)
	require.GreaterOrEqual(t, summary.EventsLast7Days, 4)

	top, err := eventRepo.TopFlags(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, top)
}
