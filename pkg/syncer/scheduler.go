package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the periodic retry-queue flush. The interval is externally
// supplied configuration, never computed here.
type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewScheduler creates a scheduler that flushes the syncer every interval.
func NewScheduler(s *Syncer, interval time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("syncer: flush interval must be positive, got %s", interval)
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := s.Flush(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Scheduled flush failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("syncer: failed to schedule flush: %w", err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins the flush cycle in its own goroutine.
func (sc *Scheduler) Start() {
	sc.logger.Info().Msg("Starting flush scheduler")
	sc.cron.Start()
}

// Stop halts scheduling and waits for a running flush callback to return.
func (sc *Scheduler) Stop() {
	ctx := sc.cron.Stop()
	<-ctx.Done()
	sc.logger.Info().Msg("Flush scheduler stopped")
}
