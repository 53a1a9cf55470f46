package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"calagent/internal/models"
)

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "subscription_key", "display_name", "domain", "timezone",
		"feed_token", "user_id", "updated_at",
	})
}

func TestGetByFeedToken_Found(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(selectSubscriptionByTokenSQL)).
		WithArgs("feed_abc").
		WillReturnRows(subscriptionRows().
			AddRow("sub-1", "team-a", "Team A", nil, "UTC", "feed_abc", 7, "2026-01-01T00:00:00Z"))

	sub, err := NewSubscriptionSQLite(db).GetByFeedToken(ctx(t), "feed_abc")
	if err != nil {
		t.Fatalf("GetByFeedToken: %v", err)
	}
	if sub == nil {
		t.Fatal("expected a subscription")
	}
	if sub.Domain != "general" {
		t.Fatalf("NULL domain should normalize to general, got %q", sub.Domain)
	}
	if sub.UserID != 7 || sub.DisplayName != "Team A" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
}

func TestGetByFeedToken_NotFound(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(selectSubscriptionByTokenSQL)).
		WithArgs("feed_missing").
		WillReturnError(sql.ErrNoRows)

	sub, err := NewSubscriptionSQLite(db).GetByFeedToken(ctx(t), "feed_missing")
	if err != nil {
		t.Fatalf("GetByFeedToken: %v", err)
	}
	if sub != nil {
		t.Fatalf("expected nil for unknown token, got %+v", sub)
	}
}

func TestUpsert_ReturnsStoredRow(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subscriptions")).
		WithArgs("sub-1", "team-a", "Team A", "sports", "UTC", "feed_new", 7, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The stored row wins: an earlier push already minted feed_old.
	mock.ExpectQuery(regexp.QuoteMeta(selectSubscriptionByKeySQL)).
		WithArgs(7, "team-a").
		WillReturnRows(subscriptionRows().
			AddRow("sub-1", "team-a", "Team A", "sports", "UTC", "feed_old", 7, "2026-01-01T00:00:00Z"))

	got, err := NewSubscriptionSQLite(db).Upsert(ctx(t), models.Subscription{
		ID: "sub-1", SubscriptionKey: "team-a", DisplayName: "Team A",
		Domain: "Sports ", Timezone: "UTC", FeedToken: "feed_new", UserID: 7,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.FeedToken != "feed_old" {
		t.Fatalf("expected stored feed token to survive, got %q", got.FeedToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("mock expectations: %v", err)
	}
}

func TestDelete_NotOwned(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(deleteSubscriptionSQL)).
		WithArgs(7, "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewSubscriptionSQLite(db).Delete(ctx(t), 7, "sub-1")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
