// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RatesWarmer is anything that can pull the latest rates through the cache.
type RatesWarmer interface {
	LatestRates(ctx context.Context) (map[string]float64, error)
}

// Scheduler keeps the rate cache warm on a cron schedule so chat requests rarely wait on the provider.
type Scheduler struct {
	cron    *cron.Cron
	warmer  RatesWarmer
	log     *zap.SugaredLogger
	timeout time.Duration
}

// NewScheduler creates a Scheduler. Specs use the six-field format with seconds.
func NewScheduler(warmer RatesWarmer, timeout time.Duration, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		warmer:  warmer,
		log:     logger,
		timeout: timeout,
	}
}

// RegisterWarm schedules cache warming.
func (s *Scheduler) RegisterWarm(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.WarmNow); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Infow("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Infow("Scheduler stopped")
}

// WarmNow reads the latest rates once, refreshing them if they went stale.
func (s *Scheduler) WarmNow() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rates, err := s.warmer.LatestRates(ctx)
	if err != nil {
		s.log.Errorw("Cache warm failed", "error", err)
		return
	}
	s.log.Debugw("Cache warmed", "currencies", len(rates))
}
