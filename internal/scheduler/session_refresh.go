package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// SessionSource is the part of the session manager the refresher drives.
type SessionSource interface {
	Current() *domain.Session
	Refresh(ctx context.Context) error
}

// SessionRefresher periodically extends the active session before it expires.
type SessionRefresher struct {
	sessions      SessionSource
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	done          chan struct{}
	manualTrigger chan struct{}
}

// NewSessionRefresher creates a new session refresher. manualTrigger may be nil.
func NewSessionRefresher(
	sessions SessionSource,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SessionRefresher {
	return &SessionRefresher{
		sessions:      sessions,
		logger:        log.With(logger.String("component", "session-refresher")),
		interval:      interval,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic refresh
func (sr *SessionRefresher) Start(ctx context.Context) error {
	if sr.interval <= 0 {
		return fmt.Errorf("refresh interval must be > 0, got %v", sr.interval)
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer close(sr.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr.RefreshOnce(ctx)
			case <-sr.manualTrigger:
				sr.logger.Info("manual session refresh triggered")
				sr.RefreshOnce(ctx)
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresher and waits for the loop to exit
func (sr *SessionRefresher) Stop() {
	close(sr.stopCh)
	<-sr.done
}

// RefreshOnce refreshes the current session, if any. Failures are logged only.
func (sr *SessionRefresher) RefreshOnce(ctx context.Context) {
	sess := sr.sessions.Current()
	if sess == nil {
		return
	}

	err := sr.sessions.Refresh(ctx)
	switch {
	case err == nil:
		sr.logger.Debug("session refreshed", logger.String("user_id", sess.UserID))
	case errors.Is(err, backend.ErrInvalidSession), errors.Is(err, auth.ErrNoSession):
		sr.logger.Warn("session expired, signed out", logger.String("user_id", sess.UserID))
	default:
		sr.logger.Error("failed to refresh session", logger.Error(err))
	}
}
