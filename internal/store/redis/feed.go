package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// changeMessage is the JSON published by the mutation scripts.
type changeMessage struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	At     int64  `json:"at"`
}

func (m changeMessage) event() domain.ChangeEvent {
	return domain.ChangeEvent{
		Type:     domain.ChangeType(m.Type),
		Table:    m.Table,
		RecordID: m.ID,
		UserID:   m.UserID,
		At:       time.Unix(m.At, 0),
	}
}

// Subscribe opens ownerID's change feed after checking that token belongs to ownerID.
func (s *Store) Subscribe(ctx context.Context, token, ownerID string, h backend.ChangeHandler) (backend.Subscription, error) {
	sess, err := s.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize feed: %w", err)
	}
	if sess.UserID != ownerID {
		return nil, fmt.Errorf("feed for %s: %w", ownerID, backend.ErrPermissionDenied)
	}

	channel := ChangesChannel(ownerID)
	ps := s.client.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &subscription{
		pubsub: ps,
		done:   make(chan struct{}),
		logger: s.logger.With(logger.String("channel", channel)),
	}
	go sub.run(ps.Channel(), h)

	s.logger.Debug("change feed opened", logger.String("user_id", ownerID))
	return sub, nil
}

type subscription struct {
	pubsub    *redis.PubSub
	done      chan struct{}
	logger    logger.Logger
	closeOnce sync.Once
	closeErr  error
}

func (s *subscription) run(msgs <-chan *redis.Message, h backend.ChangeHandler) {
	defer close(s.done)
	for msg := range msgs {
		var m changeMessage
		if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
			s.logger.Warn("dropping malformed change event", logger.Error(err))
			continue
		}
		h(m.event())
	}
}

// Close must not be called from the handler: it waits for the handler to return.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pubsub.Close()
		<-s.done
		s.logger.Debug("change feed closed")
	})
	return s.closeErr
}
