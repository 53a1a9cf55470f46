package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"calagent/internal/metrics"
	"calagent/internal/models"
	"calagent/internal/repository"
)

const (
	feedTokenPrefix = "feed_"
	feedTokenLength = 24

	defaultTimezone   = "UTC"
	defaultConfidence = 0.8
)

type SubscriptionService struct {
	subs     repository.SubscriptionRepo
	events   repository.EventRepo
	syncRuns repository.SyncRunRepo
	baseURL  string
	notifier Notifier
	sink     metrics.Sink
}

func NewSubscriptionService(
	subs repository.SubscriptionRepo,
	events repository.EventRepo,
	syncRuns repository.SyncRunRepo,
	baseURL string,
	notifier Notifier,
	sink metrics.Sink,
) *SubscriptionService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &SubscriptionService{
		subs:     subs,
		events:   events,
		syncRuns: syncRuns,
		baseURL:  strings.TrimRight(baseURL, "/"),
		notifier: notifier,
		sink:     sink,
	}
}

var _ Subscriptions = (*SubscriptionService)(nil)

// Push creates or refreshes a subscription and writes its event batch.
// The whole push is recorded as a sync run; the notifier fires after a
// successful write and never blocks the response.
func (s *SubscriptionService) Push(ctx context.Context, userID int, in PushInput) (PushResult, error) {
	sub, err := s.upsertSubscription(ctx, userID, in)
	if err != nil {
		return PushResult{}, err
	}

	count, err := s.writeEvents(ctx, sub.ID, in.Events)
	if err != nil {
		s.sink.PushCompleted(metrics.OutcomeFailed, 0)
		return PushResult{}, err
	}

	s.sink.PushCompleted(metrics.OutcomeSuccess, count)
	s.notifier.Notify(fmt.Sprintf("subscription %q synced: %d event(s)", sub.SubscriptionKey, count))

	return PushResult{
		SubscriptionID: sub.ID,
		FeedToken:      sub.FeedToken,
		FeedURL:        s.FeedURL(sub.FeedToken),
		EventCount:     count,
	}, nil
}

// AppendEvents writes events into an existing subscription owned by userID.
func (s *SubscriptionService) AppendEvents(ctx context.Context, userID int, subscriptionID string, events []EventInput) (int, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return 0, err
	}
	if sub == nil || sub.UserID != userID {
		return 0, ErrNotFound
	}

	count, err := s.writeEvents(ctx, sub.ID, events)
	if err != nil {
		s.sink.PushCompleted(metrics.OutcomeFailed, 0)
		return 0, err
	}
	s.sink.PushCompleted(metrics.OutcomeSuccess, count)
	s.notifier.Notify(fmt.Sprintf("subscription %q synced: %d event(s)", sub.SubscriptionKey, count))
	return count, nil
}

func (s *SubscriptionService) List(ctx context.Context, userID int) ([]models.Subscription, error) {
	return s.subs.ListByUser(ctx, userID)
}

func (s *SubscriptionService) Get(ctx context.Context, userID int, id string) (models.Subscription, []models.Event, error) {
	sub, err := s.subs.GetByID(ctx, id)
	if err != nil {
		return models.Subscription{}, nil, err
	}
	if sub == nil || sub.UserID != userID {
		return models.Subscription{}, nil, ErrNotFound
	}
	events, err := s.events.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return models.Subscription{}, nil, err
	}
	return *sub, events, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, userID int, id string) error {
	err := s.subs.Delete(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// FeedURL builds the public URL for a feed token.
func (s *SubscriptionService) FeedURL(feedToken string) string {
	return fmt.Sprintf("%s/cal/%s.ics", s.baseURL, feedToken)
}

func (s *SubscriptionService) upsertSubscription(ctx context.Context, userID int, in PushInput) (models.Subscription, error) {
	timezone := in.Timezone
	if timezone == "" {
		timezone = defaultTimezone
	}

	token, err := generateFeedToken()
	if err != nil {
		return models.Subscription{}, fmt.Errorf("generate feed token: %w", err)
	}

	// The token is only used on insert; an existing row keeps the token it
	// was created with, so published feed URLs stay valid across pushes.
	return s.subs.Upsert(ctx, models.Subscription{
		ID:              uuid.NewString(),
		SubscriptionKey: in.SubscriptionKey,
		DisplayName:     in.DisplayName,
		Domain:          in.Domain,
		Timezone:        timezone,
		FeedToken:       token,
		UserID:          userID,
		UpdatedAt:       time.Now().UTC(),
	})
}

// writeEvents validates and upserts one batch, wrapped in a sync run.
func (s *SubscriptionService) writeEvents(ctx context.Context, subscriptionID string, inputs []EventInput) (int, error) {
	run := models.SyncRun{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		TraceID:        uuid.NewString(),
		Status:         models.SyncRunning,
		StartedAt:      time.Now().UTC(),
	}
	if err := s.syncRuns.Create(ctx, run); err != nil {
		return 0, err
	}

	count, err := s.doWriteEvents(ctx, subscriptionID, inputs)
	if err != nil {
		run.Status = models.SyncFailed
		run.ErrorMessage = err.Error()
		_ = s.syncRuns.Complete(ctx, run)
		return 0, err
	}

	run.Status = models.SyncSuccess
	run.InsertedCount = count
	if cerr := s.syncRuns.Complete(ctx, run); cerr != nil {
		return count, cerr
	}
	return count, nil
}

func (s *SubscriptionService) doWriteEvents(ctx context.Context, subscriptionID string, inputs []EventInput) (int, error) {
	if len(inputs) == 0 {
		return 0, nil
	}

	events := make([]models.Event, 0, len(inputs))
	for _, in := range inputs {
		ev, err := normalizeEvent(subscriptionID, in)
		if err != nil {
			return 0, err
		}
		events = append(events, ev)
	}
	return s.events.UpsertBatch(ctx, events)
}

// normalizeEvent turns an agent payload into a domain event, parsing
// timestamps and applying the documented defaults. This is the single
// normalization boundary: downstream code (the encoder included) only ever
// sees well-formed events.
func normalizeEvent(subscriptionID string, in EventInput) (models.Event, error) {
	start, err := time.Parse(time.RFC3339, in.StartAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("%w %q: bad start_at %q", ErrInvalidEvent, in.ExternalID, in.StartAt)
	}

	var end *time.Time
	if in.EndAt != "" {
		t, err := time.Parse(time.RFC3339, in.EndAt)
		if err != nil {
			return models.Event{}, fmt.Errorf("%w %q: bad end_at %q", ErrInvalidEvent, in.ExternalID, in.EndAt)
		}
		end = &t
	}

	status := models.EventStatus(in.Status)
	if in.Status == "" {
		status = models.StatusScheduled
	}
	if !status.Valid() {
		return models.Event{}, fmt.Errorf("%w %q: unknown status %q", ErrInvalidEvent, in.ExternalID, in.Status)
	}

	timezone := in.Timezone
	if timezone == "" {
		timezone = defaultTimezone
	}
	confidence := defaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	labels := in.Labels
	if labels == nil {
		labels = []string{}
	}

	return models.Event{
		SubscriptionID: subscriptionID,
		ExternalID:     in.ExternalID,
		Title:          in.Title,
		Description:    in.Description,
		StartAt:        start,
		EndAt:          end,
		Timezone:       timezone,
		Location:       in.Location,
		Status:         status,
		SourceURL:      in.SourceURL,
		Confidence:     confidence,
		Labels:         labels,
		SourceHash:     sourceHash(in),
	}, nil
}

// sourceHash fingerprints the content-bearing fields of a payload so
// unchanged events can be recognized across pushes.
func sourceHash(in EventInput) string {
	raw, _ := json.Marshal(map[string]any{
		"title":      in.Title,
		"start_at":   in.StartAt,
		"end_at":     in.EndAt,
		"timezone":   in.Timezone,
		"location":   in.Location,
		"source_url": in.SourceURL,
		"confidence": in.Confidence,
		"labels":     in.Labels,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func generateFeedToken() (string, error) {
	buf := make([]byte, feedTokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return feedTokenPrefix + hex.EncodeToString(buf), nil
}
