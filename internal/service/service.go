package service

import (
	"context"
	"errors"
	"time"

	"calagent/internal/metrics"
	"calagent/internal/models"
	"calagent/internal/repository"
)

// Shared sentinels, mapped onto HTTP codes at the handler layer.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidEvent = errors.New("invalid event")
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// APIKeys issues and validates the bearer credentials agents push with.
type APIKeys interface {
	Issue(ctx context.Context, userID int, name string) (IssuedKey, error)
	List(ctx context.Context, userID int) ([]models.APIKey, error)
	Revoke(ctx context.Context, userID int, keyID string) error
	Validate(ctx context.Context, rawKey string) (int, error)
}

// EventInput is one event as sent by an agent. Timestamps arrive as RFC3339
// strings and are parsed exactly once, here at the API boundary.
type EventInput struct {
	ExternalID  string   `json:"external_id" binding:"required"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	StartAt     string   `json:"start_at" binding:"required"`
	EndAt       string   `json:"end_at"`
	Timezone    string   `json:"timezone"`
	Location    string   `json:"location"`
	Status      string   `json:"status"`
	SourceURL   string   `json:"source_url"`
	Confidence  *float64 `json:"confidence"`
	Labels      []string `json:"labels"`
}

// PushInput creates or refreshes a subscription and writes a batch of events.
type PushInput struct {
	SubscriptionKey string       `json:"subscription_key" binding:"required"`
	DisplayName     string       `json:"display_name" binding:"required"`
	Domain          string       `json:"domain"`
	Timezone        string       `json:"timezone"`
	Events          []EventInput `json:"events"`
}

type PushResult struct {
	SubscriptionID string `json:"subscription_id"`
	FeedToken      string `json:"feed_token"`
	FeedURL        string `json:"feed_url"`
	EventCount     int    `json:"event_count"`
}

// Subscriptions is the agent-facing CRUD surface.
type Subscriptions interface {
	Push(ctx context.Context, userID int, in PushInput) (PushResult, error)
	AppendEvents(ctx context.Context, userID int, subscriptionID string, events []EventInput) (int, error)
	List(ctx context.Context, userID int) ([]models.Subscription, error)
	Get(ctx context.Context, userID int, id string) (models.Subscription, []models.Event, error)
	Delete(ctx context.Context, userID int, id string) error
	FeedURL(feedToken string) string
}

// Feed is a rendered calendar document ready to hand to a client.
type Feed struct {
	Filename string
	Body     string
}

// Feeds resolves capability tokens and renders calendar documents.
type Feeds interface {
	Render(ctx context.Context, token string) (Feed, error)
	RenderMerged(ctx context.Context, token string) (Feed, error)
	MasterToken(ctx context.Context, userID int) (string, error)
	MasterFeedURL(token string) string
}

// SyncLog exposes recent push activity for a user's subscription.
type SyncLog interface {
	Recent(ctx context.Context, userID int, subscriptionID string, limit int) ([]models.SyncRun, error)
}

// Notifier delivers out-of-band operator notifications. Implementations are
// fire-and-forget: they must never block or fail the caller.
type Notifier interface {
	Notify(message string)
}

// Sweeper runs the periodic retention job. Stop via context cancellation
// in main() for graceful shutdown.
type Sweeper interface {
	Run(ctx context.Context)
}

type IssuedKey struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"` // raw key, shown exactly once
	KeyPrefix string    `json:"key_prefix"`
	CreatedAt time.Time `json:"created_at"`
}

// Service aggregates all sub-services.
type Service struct {
	Authorization
	APIKeys
	Subscriptions
	Feeds
	SyncLog
}

// Config carries the knobs services need beyond their repositories.
type Config struct {
	SigningKey string
	TokenTTL   time.Duration
	BaseURL    string
}

// NewService wires the repository layer into concrete services.
func NewService(repos *repository.Repository, cfg Config, notifier Notifier, sink metrics.Sink) *Service {
	subs := NewSubscriptionService(repos.Subscriptions, repos.Events, repos.SyncRuns, cfg.BaseURL, notifier, sink)
	return &Service{
		Authorization: NewAuthService(repos.Auth, cfg.SigningKey, cfg.TokenTTL),
		APIKeys:       NewAPIKeyService(repos.APIKeys),
		Subscriptions: subs,
		Feeds:         NewFeedService(repos.Subscriptions, repos.Events, repos.Profiles, cfg.BaseURL, sink),
		SyncLog:       NewSyncLogService(repos.Subscriptions, repos.SyncRuns),
	}
}
