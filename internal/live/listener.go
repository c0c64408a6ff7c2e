// Package live keeps exactly one user-scoped change feed open for the active session.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

var ErrNoSession = errors.New("no session")

type Listener struct {
	feed   backend.ChangeFeed
	logger logger.Logger

	mu     sync.Mutex
	sub    backend.Subscription
	userID string
	gen    uint64 // bumped whenever the current subscription is replaced or released
}

func NewListener(feed backend.ChangeFeed, log logger.Logger) *Listener {
	return &Listener{
		feed:   feed,
		logger: log.With(logger.String("component", "change-listener")),
	}
}

// Subscribe opens the change feed for sess.UserID, closing any previous feed first.
// onChange runs on the feed goroutine for each event of that user's rows. It must not
// call Unsubscribe or Subscribe synchronously.
func (l *Listener) Subscribe(ctx context.Context, sess *domain.Session, onChange func(domain.ChangeEvent)) error {
	if sess == nil {
		return ErrNoSession
	}
	l.Unsubscribe()

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	userID := sess.UserID
	handler := func(e domain.ChangeEvent) {
		l.mu.Lock()
		current := l.gen == gen
		l.mu.Unlock()

		if !current || e.UserID != userID {
			l.logger.Debug("dropping change event",
				logger.String("subscribed", userID), logger.String("event_user", e.UserID))
			return
		}
		onChange(e)
	}

	sub, err := l.feed.Subscribe(ctx, sess.AccessToken, userID, handler)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	l.mu.Lock()
	if l.gen != gen {
		// replaced or released while the handshake was in flight
		l.mu.Unlock()
		l.closeSub(sub)
		return nil
	}
	l.sub = sub
	l.userID = userID
	l.mu.Unlock()

	l.logger.Info("subscribed to changes", logger.String("user_id", userID))
	return nil
}

// Unsubscribe releases the open feed, if any. Safe to call repeatedly. Once it
// returns, the previous onChange is never invoked again.
func (l *Listener) Unsubscribe() {
	l.mu.Lock()
	sub, userID := l.sub, l.userID
	l.sub = nil
	l.userID = ""
	l.gen++
	l.mu.Unlock()

	if sub == nil {
		return
	}
	l.closeSub(sub)
	l.logger.Info("unsubscribed from changes", logger.String("user_id", userID))
}

func (l *Listener) closeSub(sub backend.Subscription) {
	if err := sub.Close(); err != nil {
		l.logger.Warn("failed to close change feed", logger.Error(err))
	}
}

// Active reports the user whose feed is open.
func (l *Listener) Active() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userID, l.sub != nil
}
