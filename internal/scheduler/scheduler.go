package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/trailwx/segment-weather/internal/availability"
)

// Scheduler periodically re-runs the model availability probe when its cache
// goes stale. Probing is expensive relative to segment fetches, so it runs on
// a coarse interval rather than per request.
type Scheduler struct {
	scheduler *gocron.Scheduler
	prober    *availability.Prober
	interval  time.Duration
	timeout   time.Duration
}

// New creates a Scheduler around the prober.
func New(prober *availability.Prober, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		prober:    prober,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic staleness check and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 12 * 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		if !s.prober.Stale() {
			return
		}
		log.Println("scheduler: availability cache is stale; probing models")

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.prober.Probe(ctx); err != nil {
			log.Printf("scheduler: availability probe failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
