package repositories

import (
	"fmt"
	"time"

	"database/sql"

	"github.com/castlebay/halcyon/internal/models"
)

// EventRepository records session lifecycle events (logins, refreshes,
// restarts, failures, logouts) in an append-only log. Events are diagnostic
// only and never read back by the session machinery itself.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates an event repository backed by db.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append records one event. A zero CreatedAt is filled with the current time.
func (r *EventRepository) Append(event *models.AuthEvent) error {
	if event == nil {
		return fmt.Errorf("failed to append event: event is nil")
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		"INSERT INTO auth_events (subject_id, kind, detail, created_at) VALUES (?, ?, ?, ?)",
		event.SubjectID, event.Kind, event.Detail, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		event.ID = id
	}

	return nil
}

// Recent returns up to limit events, newest first, optionally narrowed to one
// subject. A non-positive limit defaults to 50.
func (r *EventRepository) Recent(subjectID string, limit int) ([]models.AuthEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, subject_id, kind, detail, created_at FROM auth_events"
	args := []any{}
	if subjectID != "" {
		query += " WHERE subject_id = ?"
		args = append(args, subjectID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.AuthEvent
	for rows.Next() {
		var event models.AuthEvent
		if err := rows.Scan(&event.ID, &event.SubjectID, &event.Kind, &event.Detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	return events, nil
}
