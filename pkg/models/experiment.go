package models

import (
	"time"

	"github.com/google/uuid"
)

// Experiment statuses. Only running experiments are eligible for evaluation.
const (
	ExperimentStatusDraft     = "draft"
	ExperimentStatusRunning   = "running"
	ExperimentStatusPaused    = "paused"
	ExperimentStatusCompleted = "completed"
)

// Experiment is an A/B test scoped to one feature flag with a percentage
// split between two variants. VariantAPercentage + VariantBPercentage must
// equal 100, validated before persistence.
type Experiment struct {
	ID                 uuid.UUID  `json:"id"`
	FlagID             uuid.UUID  `json:"flag_id"`
	Name               string     `json:"name"`
	Description        *string    `json:"description"`
	VariantAPercentage float64    `json:"variant_a_percentage"`
	VariantBPercentage float64    `json:"variant_b_percentage"`
	Status             string     `json:"status"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsValidStatus reports whether s is one of the known experiment statuses.
func IsValidStatus(s string) bool {
	switch s {
	case ExperimentStatusDraft, ExperimentStatusRunning, ExperimentStatusPaused, ExperimentStatusCompleted:
		return true
	}
	return false
}

// ActiveAt reports whether the experiment is eligible for evaluation at the
// given instant: status running and, when dates are set, within the window.
func (e *Experiment) ActiveAt(now time.Time) bool {
	if e.Status != ExperimentStatusRunning {
		return false
	}
	if e.StartDate != nil && now.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && now.After(*e.EndDate) {
		return false
	}
	return true
}
