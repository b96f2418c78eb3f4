package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/variantlab/variant-engine/pkg/database"
	"github.com/variantlab/variant-engine/pkg/models"
)

// EventRepository defines the interface for flag event ingestion and the
// aggregate queries backing the metrics endpoints.
type EventRepository interface {
	Create(ctx context.Context, event *models.FlagEvent) error
	List(ctx context.Context, limit int) ([]*models.FlagEvent, error)
	DashboardSummary(ctx context.Context) (*models.DashboardSummary, error)
	// TopFlags returns the most-evaluated flags over the trailing seven days.
	TopFlags(ctx context.Context, limit int) ([]*models.TopFlag, error)
	// FlagMetrics aggregates events for a single flag over the trailing
	// thirty days: counts by type, unique users, and a per-day series.
	FlagMetrics(ctx context.Context, flagID uuid.UUID) (*models.FlagMetrics, error)
}

type eventRepository struct {
	db *database.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *database.DB) EventRepository {
	return &eventRepository{db: db}
}

// Create inserts a flag event. Events are append-only.
func (r *eventRepository) Create(ctx context.Context, event *models.FlagEvent) error {
	event.CreatedAt = time.Now()

	query := `
		INSERT INTO flag_events (flag_id, user_id, event_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		event.FlagID,
		event.UserID,
		event.EventType,
		event.Metadata,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create flag event: %w", err)
	}

	return nil
}

// List retrieves the most recent events, newest first.
func (r *eventRepository) List(ctx context.Context, limit int) ([]*models.FlagEvent, error) {
	query := `
		SELECT id, flag_id, user_id, event_type, metadata, created_at
		FROM flag_events
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list flag events: %w", err)
	}
	defer rows.Close()

	var events []*models.FlagEvent
	for rows.Next() {
		var e models.FlagEvent
		if err := rows.Scan(&e.ID, &e.FlagID, &e.UserID, &e.EventType, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan flag event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flag events: %w", err)
	}

	return events, nil
}

// DashboardSummary computes the headline counts shown on the dashboard.
func (r *eventRepository) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM feature_flags),
			(SELECT COUNT(*) FROM feature_flags WHERE enabled),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM assignments),
			(SELECT COUNT(*) FROM experiments),
			(SELECT COUNT(*) FROM flag_events WHERE created_at >= NOW() - INTERVAL '7 days')`

	var s models.DashboardSummary
	err := r.db.QueryRow(ctx, query).Scan(
		&s.TotalFlags,
		&s.EnabledFlags,
		&s.TotalUsers,
		&s.TotalAssignments,
		&s.TotalExperiments,
		&s.EventsLast7Days,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard summary: %w", err)
	}

	return &s, nil
}

// TopFlags retrieves the flags with the most events in the last seven days.
func (r *eventRepository) TopFlags(ctx context.Context, limit int) ([]*models.TopFlag, error) {
	query := `
		SELECT f.id, f.key, f.name, COUNT(e.id) AS event_count, COUNT(DISTINCT e.user_id) AS unique_users
		FROM flag_events e
		JOIN feature_flags f ON f.id = e.flag_id
		WHERE e.created_at >= NOW() - INTERVAL '7 days'
		GROUP BY f.id, f.key, f.name
		ORDER BY event_count DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top flags: %w", err)
	}
	defer rows.Close()

	var flags []*models.TopFlag
	for rows.Next() {
		var f models.TopFlag
		if err := rows.Scan(&f.ID, &f.Key, &f.Name, &f.EventCount, &f.UniqueUsers); err != nil {
			return nil, fmt.Errorf("failed to scan top flag: %w", err)
		}
		flags = append(flags, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating top flags: %w", err)
	}

	return flags, nil
}

// FlagMetrics aggregates events for one flag over the trailing thirty days.
func (r *eventRepository) FlagMetrics(ctx context.Context, flagID uuid.UUID) (*models.FlagMetrics, error) {
	metrics := &models.FlagMetrics{
		FlagID:       flagID,
		EventsByType: make(map[string]int),
		EventsByDay:  []models.DayCount{},
	}

	byTypeQuery := `
		SELECT event_type, COUNT(*)
		FROM flag_events
		WHERE flag_id = $1 AND created_at >= NOW() - INTERVAL '30 days'
		GROUP BY event_type`

	rows, err := r.db.Query(ctx, byTypeQuery, flagID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event type count: %w", err)
		}
		metrics.EventsByType[eventType] = count
		metrics.TotalEvents += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event type counts: %w", err)
	}

	uniqueQuery := `
		SELECT COUNT(DISTINCT user_id)
		FROM flag_events
		WHERE flag_id = $1 AND user_id IS NOT NULL AND created_at >= NOW() - INTERVAL '30 days'`

	if err := r.db.QueryRow(ctx, uniqueQuery, flagID).Scan(&metrics.UniqueUsers); err != nil {
		return nil, fmt.Errorf("failed to query unique users: %w", err)
	}

	byDayQuery := `
		SELECT DATE(created_at) AS day, COUNT(*)
		FROM flag_events
		WHERE flag_id = $1 AND created_at >= NOW() - INTERVAL '30 days'
		GROUP BY day
		ORDER BY day`

	dayRows, err := r.db.Query(ctx, byDayQuery, flagID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by day: %w", err)
	}
	defer dayRows.Close()

	for dayRows.Next() {
		var day time.Time
		var count int
		if err := dayRows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan day count: %w", err)
		}
		metrics.EventsByDay = append(metrics.EventsByDay, models.DayCount{
			Day:   day,
			Count: count,
		})
	}
	if err := dayRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day counts: %w", err)
	}

	return metrics, nil
}

var _ EventRepository = (*eventRepository)(nil)
