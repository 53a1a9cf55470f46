package models

import "time"

// Sync run outcomes.
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncFailed  = "failed"
)

// SyncRun records one agent push against a subscription, for auditing and
// the dashboard's live activity stream.
type SyncRun struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscription_id"`
	TraceID        string     `json:"trace_id"`
	Status         string     `json:"status"` // running | success | failed
	InsertedCount  int        `json:"inserted_count"`
	UpdatedCount   int        `json:"updated_count"`
	SkippedCount   int        `json:"skipped_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}
