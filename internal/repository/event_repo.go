package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"calagent/internal/models"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

var _ EventRepo = (*EventSQLite)(nil)

const (
	eventColumns = `id, subscription_id, external_id, title, description, start_at, end_at, timezone, location, status, source_url, source_hash, confidence, labels_json, updated_at`

	upsertEventSQL = `
		INSERT INTO events (id, subscription_id, external_id, title, description, start_at, end_at, timezone, location, status, source_url, source_hash, confidence, labels_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subscription_id, external_id) DO UPDATE SET
			title=excluded.title,
			description=excluded.description,
			start_at=excluded.start_at,
			end_at=excluded.end_at,
			timezone=excluded.timezone,
			location=excluded.location,
			status=excluded.status,
			source_url=excluded.source_url,
			source_hash=excluded.source_hash,
			confidence=excluded.confidence,
			labels_json=excluded.labels_json,
			updated_at=excluded.updated_at
	`

	selectEventsBySubscriptionSQL = `SELECT ` + eventColumns + ` FROM events WHERE subscription_id = ? ORDER BY start_at ASC`

	selectEventsByUserSQL = `
		SELECT e.id, e.subscription_id, e.external_id, e.title, e.description, e.start_at, e.end_at, e.timezone, e.location, e.status, e.source_url, e.source_hash, e.confidence, e.labels_json, e.updated_at
		FROM events e
		JOIN subscriptions s ON s.id = e.subscription_id
		WHERE s.user_id = ?
		ORDER BY e.start_at ASC
	`

	deleteEndedEventsSQL = `DELETE FROM events WHERE COALESCE(end_at, start_at) < ?`
)

// UpsertBatch writes events keyed on (subscription_id, external_id) inside a
// single transaction and returns the number of rows written. Missing IDs and
// zero update stamps are filled in.
func (r *EventSQLite) UpsertBatch(ctx context.Context, events []models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin event upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare event upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = time.Now().UTC()
		}

		labels := e.Labels
		if labels == nil {
			labels = []string{}
		}
		labelsJSON, err := json.Marshal(labels)
		if err != nil {
			return 0, fmt.Errorf("marshal labels for event %q: %w", e.ExternalID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			e.ID, e.SubscriptionID, e.ExternalID, e.Title, nullString(e.Description),
			fmtTime(e.StartAt), fmtTimePtr(e.EndAt), e.Timezone, nullString(e.Location),
			string(e.Status), e.SourceURL, e.SourceHash, e.Confidence, string(labelsJSON),
			fmtTime(e.UpdatedAt),
		); err != nil {
			return 0, fmt.Errorf("upsert event %q: %w", e.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit event upsert: %w", err)
	}
	return len(events), nil
}

func (r *EventSQLite) ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Event, error) {
	return r.list(ctx, selectEventsBySubscriptionSQL, subscriptionID)
}

func (r *EventSQLite) ListByUser(ctx context.Context, userID int) ([]models.Event, error) {
	return r.list(ctx, selectEventsByUserSQL, userID)
}

// DeleteEndedBefore removes events whose end (or start, when instantaneous)
// lies before cutoff. Used by the retention sweeper.
func (r *EventSQLite) DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteEndedEventsSQL, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete ended events: %w", err)
	}
	return res.RowsAffected()
}

func (r *EventSQLite) list(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]models.Event, 0, 64)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanEvent(row rowScanner) (models.Event, error) {
	var (
		ev          models.Event
		description sql.NullString
		location    sql.NullString
		startAt     string
		endAt       sql.NullString
		status      string
		labelsJSON  string
		updatedAt   string
	)
	if err := row.Scan(&ev.ID, &ev.SubscriptionID, &ev.ExternalID, &ev.Title, &description,
		&startAt, &endAt, &ev.Timezone, &location, &status, &ev.SourceURL, &ev.SourceHash,
		&ev.Confidence, &labelsJSON, &updatedAt); err != nil {
		return models.Event{}, err
	}
	ev.Description = description.String
	ev.Location = location.String
	ev.Status = models.EventStatus(status)

	start, err := parseTime(startAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %q: bad start_at %q: %w", ev.ID, startAt, err)
	}
	ev.StartAt = start

	end, err := parseTimePtr(endAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %q: bad end_at %q: %w", ev.ID, endAt.String, err)
	}
	ev.EndAt = end

	updated, err := parseTime(updatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("event %q: bad updated_at %q: %w", ev.ID, updatedAt, err)
	}
	ev.UpdatedAt = updated

	ev.Labels = []string{}
	if labelsJSON != "" {
		if err := json.Unmarshal([]byte(labelsJSON), &ev.Labels); err != nil {
			// keep the event; labels are display-only
			ev.Labels = []string{}
		}
	}
	return ev, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
