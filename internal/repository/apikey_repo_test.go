package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestAPIKeyGetByHash(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "name", "key_prefix", "key_hash",
		"created_at", "last_used_at", "revoked_at",
	}).AddRow("key-1", 7, "agent", "cal_1234abcd", "hash",
		"2026-01-01T00:00:00Z", nil, "2026-02-01T00:00:00Z")

	mock.ExpectQuery(regexp.QuoteMeta(selectAPIKeyByHashSQL)).
		WithArgs("hash").
		WillReturnRows(rows)

	k, err := NewAPIKeySQLite(db).GetByHash(ctx(t), "hash")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if k == nil {
		t.Fatal("expected a key")
	}
	if k.RevokedAt == nil || k.LastUsedAt != nil {
		t.Fatalf("nullable timestamps not parsed: %+v", k)
	}
}

func TestAPIKeyGetByHash_Unknown(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta(selectAPIKeyByHashSQL)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	k, err := NewAPIKeySQLite(db).GetByHash(ctx(t), "nope")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if k != nil {
		t.Fatalf("expected nil for unknown hash, got %+v", k)
	}
}

func TestAPIKeyRevoke_AlreadyRevoked(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(revokeAPIKeySQL)).
		WithArgs(sqlmock.AnyArg(), 7, "key-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewAPIKeySQLite(db).Revoke(ctx(t), 7, "key-1", time.Now())
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}
