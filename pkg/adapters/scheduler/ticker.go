// Package scheduler triggers retention cleanup from inside the server process.
package scheduler

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
	"github.com/wadjakorntonsri/atf-link-tracker/pkg/ports"
)

// Ticker runs retention once at start and then every Interval.
type Ticker struct {
	retention ports.RetentionService
	interval  time.Duration
}

func NewTicker(retention ports.RetentionService, interval time.Duration) *Ticker {
	if retention == nil {
		panic("scheduler.NewTicker: nil retention service")
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Ticker{retention: retention, interval: interval}
}

// Start runs the loop in a goroutine. The returned channel closes once the
// loop has stopped after ctx is cancelled.
func (t *Ticker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		log := logger.Logger.With().Str("component", "retention_schedule").Logger()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		// Run once immediately on startup
		t.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopped")
				return
			case <-ticker.C:
				t.runOnce(ctx)
			}
		}
	}()
	return done
}

func (t *Ticker) runOnce(ctx context.Context) {
	if _, err := t.retention.Run(ctx); err != nil {
		logger.Logger.Warn().Err(err).Msg("scheduled retention failed")
	}
}
