package worker

import (
	"context"
	"time"

	"housekeeper/internal/domain"
	"housekeeper/internal/logging"

	"github.com/rs/zerolog"
)

// Scheduler triggers a sync run on a fixed interval. It runs the default
// rolling window; ad-hoc windows go through the HTTP trigger instead.
type Scheduler struct {
	syncer   domain.Syncer
	interval time.Duration
	logger   zerolog.Logger
	done     chan struct{}
}

func NewScheduler(syncer domain.Syncer, interval time.Duration, logger *zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logging.Component(logger, "scheduler"),
		done:     make(chan struct{}),
	}
}

// Start launches the loop. The first run fires after one full interval so
// a restart storm does not hammer the PMS.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info().Dur("interval", s.interval).Msg("scheduler started")
		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the loop has exited after context cancellation.
func (s *Scheduler) Wait() {
	<-s.done
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, runID, err := s.syncer.Run(ctx, time.Time{}, time.Time{})
	if err != nil {
		s.logger.Error().Err(err).Msg("scheduled sync failed")
		return
	}
	s.logger.Info().
		Str("run_id", runID).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("cancelled", summary.Cancelled).
		Msg("scheduled sync finished")
}
