// Package backend declares the capabilities the client consumes from the managed
// backend: session verification, the bookmark table and the live change feed.
//
// Every call carries the caller's access token. Authorization (including row
// ownership) is decided by the backend from that token; the client never checks it.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

var (
	// ErrInvalidSession means the token is unknown, revoked or expired.
	ErrInvalidSession = errors.New("invalid or expired session")
	// ErrUnauthorized means a table or feed call was made without a live session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied means the row policy rejected the request.
	ErrPermissionDenied = errors.New("permission denied")
)

// Auth verifies and maintains sessions issued by the identity provider.
type Auth interface {
	Verify(ctx context.Context, token string) (*domain.Session, error)
	Refresh(ctx context.Context, token string, ttl time.Duration) (*domain.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Query selects rows of the bookmark table.
type Query struct {
	OwnerID    string
	Descending bool
}

// BookmarkTable is the remote bookmark table.
//
// Update and Delete filter on the row id only. A row that is missing or owned by
// someone else is silently left alone, as a row-level policy would do.
type BookmarkTable interface {
	Select(ctx context.Context, token string, q Query) ([]domain.Bookmark, error)
	Insert(ctx context.Context, token string, row domain.NewBookmark) (int64, error)
	Update(ctx context.Context, token string, id int64, patch domain.BookmarkPatch) (int64, error)
	Delete(ctx context.Context, token string, id int64) (int64, error)
}

// ChangeHandler receives feed events. It runs on the subscription's goroutine.
type ChangeHandler func(domain.ChangeEvent)

// ChangeFeed opens live feeds of row changes scoped to one owner.
type ChangeFeed interface {
	// Subscribe returns once the feed is established server-side.
	Subscribe(ctx context.Context, token, ownerID string, h ChangeHandler) (Subscription, error)
}

// Subscription is an open feed. Close releases it and returns after the handler
// can no longer be invoked.
type Subscription interface {
	Close() error
}
