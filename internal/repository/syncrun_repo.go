package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"calagent/internal/models"
)

type SyncRunSQLite struct {
	db *sql.DB
}

func NewSyncRunSQLite(db *sql.DB) *SyncRunSQLite { return &SyncRunSQLite{db: db} }

var _ SyncRunRepo = (*SyncRunSQLite)(nil)

const (
	insertSyncRunSQL = `
		INSERT INTO sync_runs (id, subscription_id, trace_id, run_status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`

	completeSyncRunSQL = `
		UPDATE sync_runs SET
			run_status = ?,
			inserted_count = ?,
			updated_count = ?,
			skipped_count = ?,
			error_message = ?,
			finished_at = ?
		WHERE id = ?
	`

	selectSyncRunsSQL = `
		SELECT id, subscription_id, trace_id, run_status, inserted_count, updated_count, skipped_count, error_message, started_at, finished_at
		FROM sync_runs WHERE subscription_id = ?
		ORDER BY started_at DESC LIMIT ?
	`

	deleteFinishedSyncRunsSQL = `DELETE FROM sync_runs WHERE run_status != ? AND started_at < ?`
)

func (r *SyncRunSQLite) Create(ctx context.Context, run models.SyncRun) error {
	_, err := r.db.ExecContext(ctx, insertSyncRunSQL,
		run.ID, run.SubscriptionID, run.TraceID, run.Status, fmtTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert sync run %q: %w", run.ID, err)
	}
	return nil
}

func (r *SyncRunSQLite) Complete(ctx context.Context, run models.SyncRun) error {
	finished := run.FinishedAt
	if finished == nil {
		now := time.Now().UTC()
		finished = &now
	}
	_, err := r.db.ExecContext(ctx, completeSyncRunSQL,
		run.Status, run.InsertedCount, run.UpdatedCount, run.SkippedCount,
		nullString(run.ErrorMessage), fmtTimePtr(finished), run.ID)
	if err != nil {
		return fmt.Errorf("complete sync run %q: %w", run.ID, err)
	}
	return nil
}

func (r *SyncRunSQLite) ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectSyncRunsSQL, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs for %q: %w", subscriptionID, err)
	}
	defer rows.Close()

	out := make([]models.SyncRun, 0, limit)
	for rows.Next() {
		var (
			run        models.SyncRun
			errMsg     sql.NullString
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.SubscriptionID, &run.TraceID, &run.Status,
			&run.InsertedCount, &run.UpdatedCount, &run.SkippedCount, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.ErrorMessage = errMsg.String
		started, err := parseTime(startedAt)
		if err != nil {
			return nil, fmt.Errorf("sync run %q: bad started_at %q: %w", run.ID, startedAt, err)
		}
		run.StartedAt = started
		if run.FinishedAt, err = parseTimePtr(finishedAt); err != nil {
			return nil, fmt.Errorf("sync run %q: bad finished_at: %w", run.ID, err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteFinishedBefore removes finished runs started before cutoff; runs
// still marked running are kept regardless of age.
func (r *SyncRunSQLite) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteFinishedSyncRunsSQL, models.SyncRunning, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete finished sync runs: %w", err)
	}
	return res.RowsAffected()
}
