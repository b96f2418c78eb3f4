package models

import (
	"time"

	"github.com/google/uuid"
)

// FlagEvent records a single exposure or conversion event against a flag,
// used by the metrics dashboard. UserID is optional: anonymous events are
// kept when the user row is deleted.
type FlagEvent struct {
	ID        uuid.UUID  `json:"id"`
	FlagID    uuid.UUID  `json:"flag_id"`
	UserID    *uuid.UUID `json:"user_id"`
	EventType string     `json:"event_type"`
	Metadata  JSONBMap   `json:"metadata"`
	CreatedAt time.Time  `json:"created_at"`
}

// DashboardSummary aggregates system-wide counters for the admin dashboard.
type DashboardSummary struct {
	TotalFlags       int `json:"totalFlags"`
	EnabledFlags     int `json:"enabledFlags"`
	TotalUsers       int `json:"totalUsers"`
	TotalAssignments int `json:"totalAssignments"`
	TotalExperiments int `json:"totalExperiments"`
	EventsLast7Days  int `json:"eventsLast7Days"`
}

// TopFlag is a flag ranked by event volume over the last seven days.
type TopFlag struct {
	ID          uuid.UUID `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	EventCount  int       `json:"event_count"`
	UniqueUsers int       `json:"unique_users"`
}

// FlagMetrics holds per-flag event aggregates.
type FlagMetrics struct {
	FlagID       uuid.UUID      `json:"flag_id"`
	EventsByType map[string]int `json:"events_by_type"`
	UniqueUsers  int            `json:"unique_users"`
	EventsByDay  []DayCount     `json:"events_by_day"`
	TotalEvents  int            `json:"total_events"`
}

// DayCount is an event count for a single calendar day.
type DayCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}
