// Package bucketing holds the deterministic variant-assignment primitives:
// a stable hash of (experiment, user) and the percentage-split decision rule.
// Both are pure functions; all assignment state lives in the database.
package bucketing

import (
	"fmt"
	"hash/fnv"
	"math"

	"github.com/variantlab/variant-engine/pkg/apperrors"
)

// Variants of an experiment.
const (
	VariantA = "A"
	VariantB = "B"
)

// Modulus is the hash range. 10000 buckets give two-decimal percentage
// precision for fractional splits.
const Modulus = 10000

// Hash maps (experimentID, userID) to a stable value in [0, Modulus).
// The NUL separator keeps ("ab","c") and ("a","bc") from colliding.
// Empty inputs are valid and hash deterministically.
func Hash(experimentID, userID string) int {
	h := fnv.New64a()
	h.Write([]byte(experimentID))
	h.Write([]byte{0})
	h.Write([]byte(userID))
	return int(h.Sum64() % Modulus)
}

// AssignVariant converts a hash value and a variant-A percentage into a
// variant decision. variantAPercentage = 0 always yields B, = 100 always A.
func AssignVariant(hashValue int, variantAPercentage float64) (string, error) {
	if math.IsNaN(variantAPercentage) || variantAPercentage < 0 || variantAPercentage > 100 {
		return "", fmt.Errorf("%w: variant_a_percentage must be in [0, 100], got %v",
			apperrors.ErrValidation, variantAPercentage)
	}

	threshold := int(math.Round(variantAPercentage * (Modulus / 100)))
	if hashValue < threshold {
		return VariantA, nil
	}
	return VariantB, nil
}
