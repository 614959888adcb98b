package scheduler

import (
	"context"
	"time"

	"github.com/mcpcollection/mcpcollection/internal/logging"
	"github.com/mcpcollection/mcpcollection/internal/models"
)

// Refresher reloads the catalog from the registry
type Refresher interface {
	Refresh(ctx context.Context) (*models.ServerList, error)
}

// Scheduler keeps the catalog fresh by reloading it periodically
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    logging.Logger

	// tick is replaced in tests
	tick func(time.Duration) (<-chan time.Time, func())
}

// New creates a new scheduler
func New(refresher Refresher, interval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start runs an initial refresh and then one per interval until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(ctx, "scheduler starting", "interval", s.interval.String())

	s.runRefresh(ctx)

	c, stop := s.tick(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopping")
			return nil
		case <-c:
			s.runRefresh(ctx)
		}
	}
}

// runRefresh reloads the catalog; failures are logged and retried next tick
func (s *Scheduler) runRefresh(ctx context.Context) {
	start := time.Now()
	list, err := s.refresher.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error(ctx, "catalog refresh failed", "error", err)
		}
		return
	}
	s.logger.Debug(ctx, "catalog refresh complete", "servers", len(list.Servers), "took", time.Since(start).String())
}
