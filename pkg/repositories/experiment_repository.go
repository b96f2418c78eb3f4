package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/database"
	"github.com/variantlab/variant-engine/pkg/models"
)

// ExperimentRepository defines the interface for experiment data access.
type ExperimentRepository interface {
	Create(ctx context.Context, exp *models.Experiment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	List(ctx context.Context) ([]*models.Experiment, error)
	GetByFlag(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error)
	// GetActiveForFlag returns the running experiment for a flag whose date
	// window (when set) contains now, or nil when none is running. The oldest
	// running experiment wins if admins ever leave more than one running.
	GetActiveForFlag(ctx context.Context, flagID uuid.UUID, now time.Time) (*models.Experiment, error)
	Update(ctx context.Context, exp *models.Experiment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// experimentRepository implements ExperimentRepository using PostgreSQL.
type experimentRepository struct {
	db *database.DB
}

// NewExperimentRepository creates a new experiment repository.
func NewExperimentRepository(db *database.DB) ExperimentRepository {
	return &experimentRepository{db: db}
}

const experimentColumns = `id, flag_id, name, description, variant_a_percentage,
	variant_b_percentage, status, start_date, end_date, created_at, updated_at`

// Create inserts a new experiment in its initial status.
func (r *experimentRepository) Create(ctx context.Context, exp *models.Experiment) error {
	now := time.Now()
	exp.CreatedAt = now
	exp.UpdatedAt = now

	query := `
		INSERT INTO experiments (flag_id, name, description, variant_a_percentage,
			variant_b_percentage, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		exp.FlagID,
		exp.Name,
		exp.Description,
		exp.VariantAPercentage,
		exp.VariantBPercentage,
		exp.Status,
		exp.StartDate,
		exp.EndDate,
		exp.CreatedAt,
		exp.UpdatedAt,
	).Scan(&exp.ID)
	if err != nil {
		return fmt.Errorf("failed to create experiment: %w", err)
	}

	return nil
}

// GetByID retrieves an experiment by primary key. Returns nil, nil when absent.
func (r *experimentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// List retrieves all experiments ordered by creation time.
func (r *experimentRepository) List(ctx context.Context) ([]*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments ORDER BY created_at`
	return r.queryMany(ctx, query)
}

// GetByFlag retrieves all experiments belonging to a flag.
func (r *experimentRepository) GetByFlag(ctx context.Context, flagID uuid.UUID) ([]*models.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE flag_id = $1 ORDER BY created_at`
	return r.queryMany(ctx, query, flagID)
}

// GetActiveForFlag returns the currently running, in-window experiment for a
// flag, or nil, nil when there is none.
func (r *experimentRepository) GetActiveForFlag(ctx context.Context, flagID uuid.UUID, now time.Time) (*models.Experiment, error) {
	query := `
		SELECT ` + experimentColumns + `
		FROM experiments
		WHERE flag_id = $1
		  AND status = 'running'
		  AND (start_date IS NULL OR start_date <= $2)
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY created_at
		LIMIT 1`

	return r.scanOne(r.db.QueryRow(ctx, query, flagID, now))
}

// Update persists all mutable experiment fields.
func (r *experimentRepository) Update(ctx context.Context, exp *models.Experiment) error {
	exp.UpdatedAt = time.Now()

	query := `
		UPDATE experiments
		SET name = $1, description = $2, variant_a_percentage = $3,
			variant_b_percentage = $4, status = $5, start_date = $6,
			end_date = $7, updated_at = $8
		WHERE id = $9`

	result, err := r.db.Exec(ctx, query,
		exp.Name,
		exp.Description,
		exp.VariantAPercentage,
		exp.VariantBPercentage,
		exp.Status,
		exp.StartDate,
		exp.EndDate,
		exp.UpdatedAt,
		exp.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes an experiment. Its assignments cascade.
func (r *experimentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *experimentRepository) queryMany(ctx context.Context, query string, args ...any) ([]*models.Experiment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}
	defer rows.Close()

	var exps []*models.Experiment
	for rows.Next() {
		var exp models.Experiment
		if err := rows.Scan(
			&exp.ID,
			&exp.FlagID,
			&exp.Name,
			&exp.Description,
			&exp.VariantAPercentage,
			&exp.VariantBPercentage,
			&exp.Status,
			&exp.StartDate,
			&exp.EndDate,
			&exp.CreatedAt,
			&exp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		exps = append(exps, &exp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", err)
	}

	return exps, nil
}

func (r *experimentRepository) scanOne(row pgx.Row) (*models.Experiment, error) {
	var exp models.Experiment
	err := row.Scan(
		&exp.ID,
		&exp.FlagID,
		&exp.Name,
		&exp.Description,
		&exp.VariantAPercentage,
		&exp.VariantBPercentage,
		&exp.Status,
		&exp.StartDate,
		&exp.EndDate,
		&exp.CreatedAt,
		&exp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}

	return &exp, nil
}

// Ensure experimentRepository implements ExperimentRepository at compile time.
var _ ExperimentRepository = (*experimentRepository)(nil)
