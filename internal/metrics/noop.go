package metrics

import "time"

// NoopSink discards everything. Used in tests and when metrics are disabled.
type NoopSink struct{}

var _ Sink = NoopSink{}

func (NoopSink) FeedRendered(string, int, time.Duration) {}
func (NoopSink) FeedError(string)                        {}
func (NoopSink) PushCompleted(string, int)               {}
func (NoopSink) EventsSwept(int64)                       {}
