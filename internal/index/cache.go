package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

var (
	// ErrNoSession is returned when a refresh is requested without a session.
	ErrNoSession = errors.New("no session")
	// ErrOwnerMismatch is returned when the session does not belong to the cache's owner.
	ErrOwnerMismatch = errors.New("session does not match cache owner")
)

// Fetcher reads the bookmark table.
type Fetcher interface {
	Select(ctx context.Context, token string, q backend.Query) ([]domain.Bookmark, error)
}

// BookmarkCache holds the current user's bookmarks, newest first.
// It is a disposable copy of the server state, always replaced wholesale.
type BookmarkCache struct {
	table  Fetcher
	logger logger.Logger

	mu          sync.RWMutex
	bookmarks   []domain.Bookmark
	owner       string
	epoch       uint64    // bumped on every Reset
	issued      uint64    // sequence handed to each started refresh
	applied     uint64    // sequence of the refresh currently shown
	lastRefresh time.Time // time of the last applied refresh
}

// NewBookmarkCache creates an empty cache with no owner
func NewBookmarkCache(table Fetcher, log logger.Logger) *BookmarkCache {
	return &BookmarkCache{
		table:  table,
		logger: log.With(logger.String("component", "bookmark-cache")),
	}
}

// Reset discards all bookmarks and binds the cache to ownerID ("" when signed out).
// Refreshes still in flight are discarded when they complete.
func (c *BookmarkCache) Reset(ownerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bookmarks = nil
	c.owner = ownerID
	c.epoch++
	c.applied = c.issued
	c.lastRefresh = time.Time{}
}

// Refresh replaces the whole list with the server-side set owned by sess.UserID.
// On failure the cache is left as is and the error returned. A result that was
// overtaken by a Reset or by a later refresh is dropped silently.
func (c *BookmarkCache) Refresh(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return ErrNoSession
	}

	c.mu.Lock()
	if sess.UserID != c.owner {
		c.mu.Unlock()
		return ErrOwnerMismatch
	}
	epoch := c.epoch
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	rows, err := c.table.Select(ctx, sess.AccessToken, backend.Query{OwnerID: sess.UserID, Descending: true})
	if err != nil {
		return fmt.Errorf("failed to fetch bookmarks: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch || seq <= c.applied {
		c.logger.Debug("discarding stale bookmark refresh",
			logger.String("user_id", sess.UserID), logger.Int("rows", len(rows)))
		return nil
	}

	c.bookmarks = rows
	c.applied = seq
	c.lastRefresh = time.Now()
	c.logger.Debug("bookmarks refreshed",
		logger.String("user_id", sess.UserID), logger.Int("count", len(rows)))
	return nil
}

// Snapshot returns a copy of the cached bookmarks
func (c *BookmarkCache) Snapshot() []domain.Bookmark {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Bookmark, len(c.bookmarks))
	copy(out, c.bookmarks)
	return out
}

// Get retrieves a cached bookmark by ID
func (c *BookmarkCache) Get(id int64) (domain.Bookmark, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, b := range c.bookmarks {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Bookmark{}, false
}

// Count returns the number of cached bookmarks
func (c *BookmarkCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.bookmarks)
}

// Owner returns the user the cache is bound to
func (c *BookmarkCache) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.owner
}

// LastRefresh returns the timestamp of the last applied refresh
func (c *BookmarkCache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastRefresh
}
