package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"calagent/internal/models"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestUpsertBatch_Success_WithDefaults(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewEventSQLite(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO events"))
	// ID and updated_at are generated; match arg count with AnyArg.
	prep.ExpectExec().
		WithArgs(sqlmock.AnyArg(), "sub-1", "e1", "Kickoff", sqlmock.AnyArg(),
			"2026-01-01T05:00:00Z", sqlmock.AnyArg(), "UTC", sqlmock.AnyArg(),
			"scheduled", "", sqlmock.AnyArg(), 0.8, "[]", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	start, _ := time.Parse(time.RFC3339, "2026-01-01T00:00:00-05:00")
	n, err := repo.UpsertBatch(ctx(t), []models.Event{{
		SubscriptionID: "sub-1",
		ExternalID:     "e1",
		Title:          "Kickoff",
		StartAt:        start, // stored normalized to UTC
		Timezone:       "UTC",
		Status:         models.StatusScheduled,
		Confidence:     0.8,
	}})
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row written, got %d", n)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestUpsertBatch_Empty(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	n, err := NewEventSQLite(db).UpsertBatch(ctx(t), nil)
	if err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}

func TestUpsertBatch_DBError_RollsBack(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := NewEventSQLite(db)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO events"))
	prep.ExpectExec().WillReturnError(errors.New("down"))
	mock.ExpectRollback()

	_, err = repo.UpsertBatch(ctx(t), []models.Event{{
		SubscriptionID: "sub-1", ExternalID: "e1", Title: "x",
		StartAt: time.Now(), Timezone: "UTC", Status: models.StatusScheduled,
	}})
	if err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func eventRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "subscription_id", "external_id", "title", "description",
		"start_at", "end_at", "timezone", "location", "status",
		"source_url", "source_hash", "confidence", "labels_json", "updated_at",
	})
}

func TestListBySubscription_ParsesRows(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := eventRows().
		AddRow("ev-1", "sub-1", "e1", "Kickoff", nil,
			"2026-01-01T05:00:00Z", nil, "UTC", nil, "scheduled",
			"", "h", 0.8, `["sports"]`, "2026-01-01T00:00:00Z").
		AddRow("ev-2", "sub-1", "e2", "Wrap-up", "notes",
			"2026-01-02T05:00:00Z", "2026-01-02T06:00:00Z", "UTC", "HQ", "cancelled",
			"https://example.com", "h2", 0.9, "[]", "2026-01-01T00:00:00Z")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsBySubscriptionSQL)).
		WithArgs("sub-1").
		WillReturnRows(rows)

	events, err := NewEventSQLite(db).ListBySubscription(ctx(t), "sub-1")
	if err != nil {
		t.Fatalf("ListBySubscription: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].StartAt.IsZero() || events[0].Labels[0] != "sports" {
		t.Fatalf("first event not normalized: %+v", events[0])
	}
	if events[1].EndAt == nil || events[1].Status != models.StatusCancelled || events[1].Location != "HQ" {
		t.Fatalf("second event not normalized: %+v", events[1])
	}
}

func TestListBySubscription_MalformedTimestampFails(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := eventRows().
		AddRow("ev-1", "sub-1", "e1", "Kickoff", nil,
			"not-a-time", nil, "UTC", nil, "scheduled",
			"", "h", 0.8, "[]", "2026-01-01T00:00:00Z")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventsBySubscriptionSQL)).
		WithArgs("sub-1").
		WillReturnRows(rows)

	// A malformed stored timestamp must fail here, at the normalization
	// boundary, instead of reaching the feed encoder.
	if _, err := NewEventSQLite(db).ListBySubscription(ctx(t), "sub-1"); err == nil {
		t.Fatal("expected error for malformed start_at")
	}
}
