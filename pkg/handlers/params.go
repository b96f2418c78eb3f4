package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ParseUUIDParam extracts and validates a UUID path parameter.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s parameter", name)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %s", name, raw)
	}

	return id, nil
}

// ParseFlagID extracts and validates the flag ID from the request path.
func ParseFlagID(r *http.Request) (uuid.UUID, error) {
	return ParseUUIDParam(r, "flagId")
}

// ParseExperimentID extracts and validates the experiment ID from the
// request path.
func ParseExperimentID(r *http.Request) (uuid.UUID, error) {
	return ParseUUIDParam(r, "experimentId")
}

// ParseUserID extracts and validates the user ID from the request path.
func ParseUserID(r *http.Request) (uuid.UUID, error) {
	return ParseUUIDParam(r, "userId")
}
