package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration errors are logged-and-forgotten by the registry wrapper;
// recording never blocks the request path.
type PrometheusSink struct {
	feedRendersTotal *prometheus.CounterVec
	feedErrorsTotal  *prometheus.CounterVec
	feedEventCount   prometheus.Histogram
	feedRenderTime   prometheus.Histogram
	pushesTotal      *prometheus.CounterVec
	eventsWritten    prometheus.Counter
	eventsSwept      prometheus.Counter
}

var _ Sink = (*PrometheusSink)(nil)

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		feedRendersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calagent_feed_renders_total",
			Help: "Feed documents rendered, by feed kind.",
		}, []string{"kind"}),
		feedErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calagent_feed_errors_total",
			Help: "Feed render failures, by feed kind.",
		}, []string{"kind"}),
		feedEventCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calagent_feed_event_count",
			Help:    "Events per rendered feed.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
		feedRenderTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "calagent_feed_render_seconds",
			Help:    "Wall time spent rendering one feed.",
			Buckets: prometheus.DefBuckets,
		}),
		pushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "calagent_pushes_total",
			Help: "Agent pushes, by outcome.",
		}, []string{"outcome"}),
		eventsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calagent_events_written_total",
			Help: "Events upserted by agent pushes.",
		}),
		eventsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "calagent_events_swept_total",
			Help: "Rows removed by the retention sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{
		s.feedRendersTotal, s.feedErrorsTotal, s.feedEventCount,
		s.feedRenderTime, s.pushesTotal, s.eventsWritten, s.eventsSwept,
	} {
		// Duplicate registrations (e.g. in tests) are not fatal.
		_ = reg.Register(c)
	}
	return s
}

func (s *PrometheusSink) FeedRendered(kind string, eventCount int, duration time.Duration) {
	s.feedRendersTotal.WithLabelValues(kind).Inc()
	s.feedEventCount.Observe(float64(eventCount))
	s.feedRenderTime.Observe(duration.Seconds())
}

func (s *PrometheusSink) FeedError(kind string) {
	s.feedErrorsTotal.WithLabelValues(kind).Inc()
}

func (s *PrometheusSink) PushCompleted(outcome string, eventCount int) {
	s.pushesTotal.WithLabelValues(outcome).Inc()
	if eventCount > 0 {
		s.eventsWritten.Add(float64(eventCount))
	}
}

func (s *PrometheusSink) EventsSwept(count int64) {
	if count > 0 {
		s.eventsSwept.Add(float64(count))
	}
}
