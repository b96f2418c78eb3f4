package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/variantlab/variant-engine/pkg/apperrors"
	"github.com/variantlab/variant-engine/pkg/database"
	"github.com/variantlab/variant-engine/pkg/models"
)

// FlagRepository defines the interface for feature flag data access.
type FlagRepository interface {
	Create(ctx context.Context, flag *models.FeatureFlag) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error)
	GetByKey(ctx context.Context, key string) (*models.FeatureFlag, error)
	List(ctx context.Context) ([]*models.FeatureFlag, error)
	Update(ctx context.Context, flag *models.FeatureFlag) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// flagRepository implements FlagRepository using PostgreSQL.
type flagRepository struct {
	db *database.DB
}

// NewFlagRepository creates a new feature flag repository.
func NewFlagRepository(db *database.DB) FlagRepository {
	return &flagRepository{db: db}
}

const flagColumns = `id, key, name, description, enabled, created_at, updated_at`

// Create inserts a new feature flag. A duplicate key is a validation error.
func (r *flagRepository) Create(ctx context.Context, flag *models.FeatureFlag) error {
	now := time.Now()
	flag.CreatedAt = now
	flag.UpdatedAt = now

	query := `
		INSERT INTO feature_flags (key, name, description, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		flag.Key,
		flag.Name,
		flag.Description,
		flag.Enabled,
		flag.CreatedAt,
		flag.UpdatedAt,
	).Scan(&flag.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: flag key %q already exists", apperrors.ErrValidation, flag.Key)
		}
		return fmt.Errorf("failed to create flag: %w", err)
	}

	return nil
}

// GetByID retrieves a flag by primary key. Returns nil, nil when absent.
func (r *flagRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FeatureFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM feature_flags WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByKey retrieves a flag by its unique key. Returns nil, nil when absent.
func (r *flagRepository) GetByKey(ctx context.Context, key string) (*models.FeatureFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM feature_flags WHERE key = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, key))
}

// List retrieves all flags ordered by creation time.
func (r *flagRepository) List(ctx context.Context) ([]*models.FeatureFlag, error) {
	query := `SELECT ` + flagColumns + ` FROM feature_flags ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	var flags []*models.FeatureFlag
	for rows.Next() {
		var flag models.FeatureFlag
		if err := rows.Scan(
			&flag.ID,
			&flag.Key,
			&flag.Name,
			&flag.Description,
			&flag.Enabled,
			&flag.CreatedAt,
			&flag.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		flags = append(flags, &flag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flags: %w", err)
	}

	return flags, nil
}

// Update persists name, description, and enabled. The key is immutable.
func (r *flagRepository) Update(ctx context.Context, flag *models.FeatureFlag) error {
	flag.UpdatedAt = time.Now()

	query := `
		UPDATE feature_flags
		SET name = $1, description = $2, enabled = $3, updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(ctx, query,
		flag.Name,
		flag.Description,
		flag.Enabled,
		flag.UpdatedAt,
		flag.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a flag. Experiments, assignments, and events cascade.
func (r *flagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM feature_flags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *flagRepository) scanOne(row pgx.Row) (*models.FeatureFlag, error) {
	var flag models.FeatureFlag
	err := row.Scan(
		&flag.ID,
		&flag.Key,
		&flag.Name,
		&flag.Description,
		&flag.Enabled,
		&flag.CreatedAt,
		&flag.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get flag: %w", err)
	}

	return &flag, nil
}

// Ensure flagRepository implements FlagRepository at compile time.
var _ FlagRepository = (*flagRepository)(nil)
