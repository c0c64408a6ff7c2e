package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// Resyncable refetches its data in the background. It reports false when
// there was nothing to refetch (e.g. signed out).
type Resyncable interface {
	Resync() bool
}

// Resyncer periodically forces a full refetch of the bookmark list. The change
// feed is at-most-once, so events published while the subscription reconnects
// are lost; this bounds how long the list can stay stale.
type Resyncer struct {
	target   Resyncable
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	done     chan struct{}
}

func NewResyncer(target Resyncable, log logger.Logger, interval time.Duration) *Resyncer {
	return &Resyncer{
		target:   target,
		logger:   log.With(logger.String("component", "resyncer")),
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the periodic resync. A zero interval disables it.
func (r *Resyncer) Start(ctx context.Context) error {
	if r.interval < 0 {
		return fmt.Errorf("resync interval must be >= 0, got %v", r.interval)
	}
	if r.interval == 0 {
		r.logger.Info("periodic resync disabled")
		close(r.done)
		return nil
	}

	ticker := time.NewTicker(r.interval)
	go func() {
		defer close(r.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if r.target.Resync() {
					r.logger.Debug("bookmark resync scheduled")
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the resyncer and waits for the loop to exit. Safe to call once.
func (r *Resyncer) Stop() {
	close(r.stopCh)
	<-r.done
}
