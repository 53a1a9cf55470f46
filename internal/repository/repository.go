package repository

import (
	"context"
	"database/sql"
	"time"

	"calagent/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type APIKeyRepo interface {
	Insert(ctx context.Context, k models.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListByUser(ctx context.Context, userID int) ([]models.APIKey, error)
	Revoke(ctx context.Context, userID int, keyID string, at time.Time) error
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error
}

type SubscriptionRepo interface {
	Upsert(ctx context.Context, s models.Subscription) (models.Subscription, error)
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
	GetByKey(ctx context.Context, userID int, subscriptionKey string) (*models.Subscription, error)
	GetByFeedToken(ctx context.Context, feedToken string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID int) ([]models.Subscription, error)
	Delete(ctx context.Context, userID int, id string) error
}

type EventRepo interface {
	UpsertBatch(ctx context.Context, events []models.Event) (int, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]models.Event, error)
	ListByUser(ctx context.Context, userID int) ([]models.Event, error)
	DeleteEndedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type SyncRunRepo interface {
	Create(ctx context.Context, r models.SyncRun) error
	Complete(ctx context.Context, r models.SyncRun) error
	ListBySubscription(ctx context.Context, subscriptionID string, limit int) ([]models.SyncRun, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type ProfileRepo interface {
	GetMasterToken(ctx context.Context, userID int) (string, error)
	CreateMasterToken(ctx context.Context, userID int, token string) error
	GetUserIDByMasterToken(ctx context.Context, token string) (int, error)
}

type Repository struct {
	Auth          Authorization
	APIKeys       APIKeyRepo
	Subscriptions SubscriptionRepo
	Events        EventRepo
	SyncRuns      SyncRunRepo
	Profiles      ProfileRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Auth:          NewUserRepository(db),
		APIKeys:       NewAPIKeySQLite(db),
		Subscriptions: NewSubscriptionSQLite(db),
		Events:        NewEventSQLite(db),
		SyncRuns:      NewSyncRunSQLite(db),
		Profiles:      NewProfileSQLite(db),
	}
}

// Stored timestamps are RFC3339 in UTC. Parsing happens here, at the
// normalization boundary; malformed rows surface as scan errors and never
// reach the feed encoder.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
