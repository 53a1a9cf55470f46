package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"calagent/internal/logger"
	"calagent/internal/metrics"
	"calagent/internal/repository"
)

const (
	defaultSweepSchedule = "@daily"
	defaultRetentionDays = 90

	sweepTimeout = 30 * time.Second
)

// SweeperService periodically removes events that ended long ago and
// finished sync runs past retention, keeping feed queries and the DB file
// small. Scheduling uses cron syntax ("@daily", "0 3 * * *", ...).
type SweeperService struct {
	events    repository.EventRepo
	syncRuns  repository.SyncRunRepo
	schedule  string
	retention time.Duration
	log       *logger.Logger
	sink      metrics.Sink
}

func NewSweeperService(
	events repository.EventRepo,
	syncRuns repository.SyncRunRepo,
	schedule string,
	retentionDays int,
	log *logger.Logger,
	sink metrics.Sink,
) *SweeperService {
	if schedule == "" {
		schedule = defaultSweepSchedule
	}
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	if sink == nil {
		sink = metrics.NoopSink{}
	}
	return &SweeperService{
		events:    events,
		syncRuns:  syncRuns,
		schedule:  schedule,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log,
		sink:      sink,
	}
}

var _ Sweeper = (*SweeperService)(nil)

// Run installs the cron schedule and blocks until ctx is cancelled.
func (s *SweeperService) Run(ctx context.Context) {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		if s.log != nil {
			s.log.Errorw("sweeper_bad_schedule", "schedule", s.schedule, "err", err)
		}
		return
	}

	c.Start()
	<-ctx.Done()

	// Let an in-flight sweep finish before returning.
	<-c.Stop().Done()
}

func (s *SweeperService) sweep(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.retention)

	removedEvents, err := s.events.DeleteEndedBefore(sctx, cutoff)
	if err != nil && s.log != nil {
		s.log.Errorw("sweep_events_failed", "err", err)
	}

	removedRuns, err := s.syncRuns.DeleteFinishedBefore(sctx, cutoff)
	if err != nil && s.log != nil {
		s.log.Errorw("sweep_sync_runs_failed", "err", err)
	}

	s.sink.EventsSwept(removedEvents + removedRuns)
	if s.log != nil && (removedEvents > 0 || removedRuns > 0) {
		s.log.Infow("sweep_completed", "events", removedEvents, "sync_runs", removedRuns, "cutoff", cutoff)
	}
}
