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

// AssignmentRepository defines the interface for variant assignment data
// access. The at-most-one-assignment guarantee lives in the database's
// UNIQUE (experiment_id, user_id) constraint so it holds across any number
// of concurrent service instances.
type AssignmentRepository interface {
	// Get returns the assignment for the pair, or nil, nil when absent.
	// Lookup only, no side effects.
	Get(ctx context.Context, experimentID, userID uuid.UUID) (*models.Assignment, error)
	// Create inserts a new assignment and returns ErrDuplicateAssignment when
	// a row already exists for the pair. Creation races resolve first-write-wins.
	Create(ctx context.Context, assignment *models.Assignment) error
	// GetOrCreate atomically inserts the given variant or fetches the row a
	// concurrent writer won with. All racing callers observe the same variant.
	GetOrCreate(ctx context.Context, experimentID, userID uuid.UUID, variant string) (*models.Assignment, error)
	ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]*models.Assignment, error)
}

// assignmentRepository implements AssignmentRepository using PostgreSQL.
type assignmentRepository struct {
	db *database.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *database.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

const assignmentColumns = `id, experiment_id, user_id, variant, created_at`

// Get retrieves the assignment for a pair. Returns nil, nil when absent.
func (r *assignmentRepository) Get(ctx context.Context, experimentID, userID uuid.UUID) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE experiment_id = $1 AND user_id = $2`
	return r.scanOne(r.db.QueryRow(ctx, query, experimentID, userID))
}

// Create inserts a new assignment row. A unique constraint violation
// (PostgreSQL error code 23505) maps to ErrDuplicateAssignment so callers
// can run the re-read-on-conflict protocol.
func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.CreatedAt = time.Now()

	query := `
		INSERT INTO assignments (experiment_id, user_id, variant, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		assignment.ExperimentID,
		assignment.UserID,
		assignment.Variant,
		assignment.CreatedAt,
	).Scan(&assignment.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

// GetOrCreate runs the conflict-safe insert-or-fetch: INSERT ... ON CONFLICT
// DO NOTHING, and when the insert loses the race, re-read the winner. A pair
// that is still absent after a conflict indicates a genuine storage fault.
func (r *assignmentRepository) GetOrCreate(ctx context.Context, experimentID, userID uuid.UUID, variant string) (*models.Assignment, error) {
	query := `
		INSERT INTO assignments (experiment_id, user_id, variant, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (experiment_id, user_id) DO NOTHING
		RETURNING ` + assignmentColumns

	var a models.Assignment
	err := r.db.QueryRow(ctx, query, experimentID, userID, variant, time.Now()).
		Scan(&a.ID, &a.ExperimentID, &a.UserID, &a.Variant, &a.CreatedAt)
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert assignment: %w", err)
	}

	// Insert lost the race; the winning row must exist now.
	assignment, err := r.Get(ctx, experimentID, userID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, fmt.Errorf("assignment for experiment %s user %s missing after conflict", experimentID, userID)
	}

	return assignment, nil
}

// ListByExperiment retrieves all assignments for an experiment, newest first.
func (r *assignmentRepository) ListByExperiment(ctx context.Context, experimentID uuid.UUID) ([]*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE experiment_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, experimentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.ExperimentID, &a.UserID, &a.Variant, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}

func (r *assignmentRepository) scanOne(row pgx.Row) (*models.Assignment, error) {
	var a models.Assignment
	err := row.Scan(&a.ID, &a.ExperimentID, &a.UserID, &a.Variant, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	return &a, nil
}

// Ensure assignmentRepository implements AssignmentRepository at compile time.
var _ AssignmentRepository = (*assignmentRepository)(nil)
