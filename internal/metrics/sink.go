// Package metrics records service counters. All methods are
// fire-and-forget: implementations MUST NOT block or propagate errors.
package metrics

import "time"

// Feed kinds for FeedRendered.
const (
	FeedSingle = "single"
	FeedMerged = "merged"
)

// Push outcomes for PushCompleted.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

type Sink interface {
	// FeedRendered records one successful feed render.
	FeedRendered(kind string, eventCount int, duration time.Duration)
	// FeedError records a failed render or token resolution error.
	FeedError(kind string)
	// PushCompleted records an agent push and how many events it wrote.
	PushCompleted(outcome string, eventCount int)
	// EventsSwept records rows removed by the retention sweeper.
	EventsSwept(count int64)
}
