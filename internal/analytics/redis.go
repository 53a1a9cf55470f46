// Package analytics records feed fetch counts in Redis, day-bucketed per
// token. Entirely optional: with no client configured the sink is a no-op,
// and a failing Redis never affects a feed response.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"calagent/internal/logger"
)

const (
	fetchKeyTTL  = 30 * 24 * time.Hour
	writeTimeout = 2 * time.Second
)

type Sink interface {
	// FeedFetched counts one fetch of the feed behind token.
	FeedFetched(token string, at time.Time)
}

type RedisSink struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisSink(client *redis.Client, log *logger.Logger) *RedisSink {
	return &RedisSink{client: client, log: log}
}

var _ Sink = (*RedisSink)(nil)

func (s *RedisSink) FeedFetched(token string, at time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		key := fetchKey(token, at)
		pipe := s.client.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, fetchKeyTTL)
		if _, err := pipe.Exec(ctx); err != nil && s.log != nil {
			s.log.Warnw("analytics_write_failed", "err", err)
		}
	}()
}

func fetchKey(token string, at time.Time) string {
	return fmt.Sprintf("feed:%s:%s", token, at.UTC().Format("20060102"))
}

// NopSink is used when Redis is not configured.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) FeedFetched(string, time.Time) {}
