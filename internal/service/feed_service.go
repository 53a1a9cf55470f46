package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"calagent/internal/ics"
	"calagent/internal/metrics"
	"calagent/internal/repository"
)

const (
	masterTokenPrefix = "mf_"
	masterTokenLength = 24

	mergedFeedFilename = "calagent-all.ics"
)

// FeedService resolves capability tokens and renders calendar documents.
// Rendering itself is pure; this layer only loads snapshots and injects the
// clock.
type FeedService struct {
	subs     repository.SubscriptionRepo
	events   repository.EventRepo
	profiles repository.ProfileRepo
	baseURL  string
	sink     metrics.Sink

	// now is swapped out in tests for deterministic documents.
	now func() time.Time
}

func NewFeedService(
	subs repository.SubscriptionRepo,
	events repository.EventRepo,
	profiles repository.ProfileRepo,
	baseURL string,
	sink metrics.Sink,
) *FeedService {
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &FeedService{
		subs:     subs,
		events:   events,
		profiles: profiles,
		baseURL:  strings.TrimRight(baseURL, "/"),
		sink:     sink,
		now:      time.Now,
	}
}

var _ Feeds = (*FeedService)(nil)

// Render resolves a single-subscription feed token and encodes its feed.
// Unknown tokens yield ErrNotFound.
func (s *FeedService) Render(ctx context.Context, token string) (Feed, error) {
	sub, err := s.subs.GetByFeedToken(ctx, token)
	if err != nil {
		s.sink.FeedError(metrics.FeedSingle)
		return Feed{}, err
	}
	if sub == nil {
		return Feed{}, ErrNotFound
	}

	events, err := s.events.ListBySubscription(ctx, sub.ID)
	if err != nil {
		s.sink.FeedError(metrics.FeedSingle)
		return Feed{}, err
	}

	started := time.Now()
	body, err := ics.EncodeFeed(*sub, events, s.now())
	if err != nil {
		s.sink.FeedError(metrics.FeedSingle)
		return Feed{}, fmt.Errorf("encode feed for %q: %w", sub.SubscriptionKey, err)
	}
	s.sink.FeedRendered(metrics.FeedSingle, len(events), time.Since(started))

	return Feed{
		Filename: sub.SubscriptionKey + ".ics",
		Body:     body,
	}, nil
}

// RenderMerged resolves a master feed token and encodes the combined
// document across all of the user's subscriptions.
func (s *FeedService) RenderMerged(ctx context.Context, token string) (Feed, error) {
	userID, err := s.profiles.GetUserIDByMasterToken(ctx, token)
	if err != nil {
		s.sink.FeedError(metrics.FeedMerged)
		return Feed{}, err
	}
	if userID == 0 {
		return Feed{}, ErrNotFound
	}

	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		s.sink.FeedError(metrics.FeedMerged)
		return Feed{}, err
	}
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		s.sink.FeedError(metrics.FeedMerged)
		return Feed{}, err
	}

	started := time.Now()
	body, err := ics.EncodeMergedFeed(events, subs, s.now())
	if err != nil {
		s.sink.FeedError(metrics.FeedMerged)
		return Feed{}, fmt.Errorf("encode merged feed: %w", err)
	}
	s.sink.FeedRendered(metrics.FeedMerged, len(events), time.Since(started))

	return Feed{
		Filename: mergedFeedFilename,
		Body:     body,
	}, nil
}

// MasterToken returns the user's master feed token, minting one on first use.
func (s *FeedService) MasterToken(ctx context.Context, userID int) (string, error) {
	token, err := s.profiles.GetMasterToken(ctx, userID)
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	buf := make([]byte, masterTokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate master token: %w", err)
	}
	token = masterTokenPrefix + hex.EncodeToString(buf)
	if err := s.profiles.CreateMasterToken(ctx, userID, token); err != nil {
		return "", err
	}
	return token, nil
}

// MasterFeedURL builds the public URL for a master feed token.
func (s *FeedService) MasterFeedURL(token string) string {
	return fmt.Sprintf("%s/cal/all/%s.ics", s.baseURL, token)
}
