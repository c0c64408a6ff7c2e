package redis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// Store is the managed backend on top of Redis: session registry, bookmark table
// with a server-side row policy (Lua), and a pub/sub change feed.
type Store struct {
	client *redis.Client
	logger logger.Logger
}

var (
	_ backend.Auth          = (*Store)(nil)
	_ backend.BookmarkTable = (*Store)(nil)
	_ backend.ChangeFeed    = (*Store)(nil)
)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{
		client: client,
		logger: log.With(logger.String("component", "redis-store")),
	}
}

// Error replies raised by the row policy scripts.
const (
	replyUnauthorized = "UNAUTHORIZED"
	replyDenied       = "DENIED"
)

// policyError maps script error replies onto the backend sentinels.
func policyError(err error) error {
	if err == nil {
		return nil
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		switch {
		case strings.HasPrefix(msg, replyUnauthorized):
			return fmt.Errorf("%w: %s", backend.ErrUnauthorized, msg)
		case strings.HasPrefix(msg, replyDenied):
			return fmt.Errorf("%w: %s", backend.ErrPermissionDenied, msg)
		}
	}
	return err
}
