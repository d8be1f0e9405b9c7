package app

import (
	"context"
	"log"
	"time"
)

// Sweeper defaults.
const (
	DefaultSweepInterval = time.Minute
	DefaultSweepBatch    = 50
)

// Sweeper periodically expires running sessions that have overrun their
// planned duration past the grace window, so abandoned timers release the
// owner's active slot without waiting for the next start attempt.
type Sweeper struct {
	service  *Service
	interval time.Duration
	batch    int
}

// NewSweeper creates a sweeper over the given service.
func NewSweeper(service *Service, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{service: service, interval: interval, batch: batch}
}

// Run sweeps until the context is cancelled. Sweep failures are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.service == nil {
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			expired, err := s.service.ExpireOverrun(ctx, s.batch)
			if err != nil {
				log.Printf("expiry sweep failed error=%v", err)
				continue
			}
			if expired > 0 {
				log.Printf("expiry sweep completed expired=%d", expired)
			}
		}
	}
}
