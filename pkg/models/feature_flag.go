// Package models contains domain types for variant-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// FeatureFlag is a named on/off switch for a feature. The enabled flag gates
// whether evaluation proceeds at all.
type FeatureFlag struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
