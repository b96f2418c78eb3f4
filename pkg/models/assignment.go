package models

import (
	"time"

	"github.com/google/uuid"
)

// Assignment is the durable record of which variant a user received for an
// experiment. At most one row exists per (experiment_id, user_id) pair,
// enforced by a storage-level unique constraint. Once written, the variant is
// immutable: later edits to the experiment's percentage split never change it.
type Assignment struct {
	ID           uuid.UUID `json:"id"`
	ExperimentID uuid.UUID `json:"experiment_id"`
	UserID       uuid.UUID `json:"user_id"`
	Variant      string    `json:"variant"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserFlagAssignment is a manual per-user flag override created from the
// admin UI. It is bookkeeping for admins, not consulted by evaluation.
type UserFlagAssignment struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FlagID    uuid.UUID `json:"flag_id"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}
