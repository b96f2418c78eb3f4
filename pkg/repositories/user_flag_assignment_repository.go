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

// UserFlagAssignmentRepository defines the interface for per-user flag
// override data access.
type UserFlagAssignmentRepository interface {
	// Upsert sets or replaces the override for a (user, flag) pair.
	Upsert(ctx context.Context, assignment *models.UserFlagAssignment) error
	Get(ctx context.Context, userID, flagID uuid.UUID) (*models.UserFlagAssignment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserFlagAssignment, error)
	Delete(ctx context.Context, userID, flagID uuid.UUID) error
}

type userFlagAssignmentRepository struct {
	db *database.DB
}

// NewUserFlagAssignmentRepository creates a new user flag override repository.
func NewUserFlagAssignmentRepository(db *database.DB) UserFlagAssignmentRepository {
	return &userFlagAssignmentRepository{db: db}
}

const userFlagColumns = `id, user_id, flag_id, enabled, created_at`

// Upsert inserts a new override or replaces the enabled value of an existing
// one for the same (user_id, flag_id) pair.
func (r *userFlagAssignmentRepository) Upsert(ctx context.Context, assignment *models.UserFlagAssignment) error {
	assignment.CreatedAt = time.Now()

	query := `
		INSERT INTO user_flag_assignments (user_id, flag_id, enabled, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, flag_id) DO UPDATE SET enabled = EXCLUDED.enabled
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		assignment.UserID,
		assignment.FlagID,
		assignment.Enabled,
		assignment.CreatedAt,
	).Scan(&assignment.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert user flag assignment: %w", err)
	}

	return nil
}

// Get retrieves the override for a (user, flag) pair. Returns nil, nil when absent.
func (r *userFlagAssignmentRepository) Get(ctx context.Context, userID, flagID uuid.UUID) (*models.UserFlagAssignment, error) {
	query := `SELECT ` + userFlagColumns + ` FROM user_flag_assignments WHERE user_id = $1 AND flag_id = $2`

	var a models.UserFlagAssignment
	err := r.db.QueryRow(ctx, query, userID, flagID).Scan(&a.ID, &a.UserID, &a.FlagID, &a.Enabled, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user flag assignment: %w", err)
	}

	return &a, nil
}

// ListForUser retrieves all flag overrides for a user.
func (r *userFlagAssignmentRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.UserFlagAssignment, error) {
	query := `SELECT ` + userFlagColumns + ` FROM user_flag_assignments WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user flag assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.UserFlagAssignment
	for rows.Next() {
		var a models.UserFlagAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.FlagID, &a.Enabled, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user flag assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user flag assignments: %w", err)
	}

	return assignments, nil
}

// Delete removes the override for a (user, flag) pair.
func (r *userFlagAssignmentRepository) Delete(ctx context.Context, userID, flagID uuid.UUID) error {
	query := `DELETE FROM user_flag_assignments WHERE user_id = $1 AND flag_id = $2`

	result, err := r.db.Exec(ctx, query, userID, flagID)
	if err != nil {
		return fmt.Errorf("failed to delete user flag assignment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

var _ UserFlagAssignmentRepository = (*userFlagAssignmentRepository)(nil)
