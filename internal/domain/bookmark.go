package domain

import "time"

// TableBookmarks is the backend table holding bookmark rows.
const TableBookmarks = "bookmarks"

// Bookmark is a stored (title, url) pair owned by exactly one user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable, server-assigned)
	// ─────────────────────────────

	// ID increases monotonically in creation order and is the list sort key.
	ID int64 `json:"id"`

	// UserID is the owner. It always equals the session user that created it;
	// the backend row policy guarantees it, not the client.
	UserID string `json:"user_id"`

	// ─────────────────────────────
	// Content (mutable via update)
	// ─────────────────────────────

	Title string `json:"title"`
	URL   string `json:"url"`

	// CreatedAt is stamped by the backend.
	CreatedAt time.Time `json:"created_at"`
}

// NewBookmark is the insert payload. The id and timestamp come from the backend.
type NewBookmark struct {
	Title  string
	URL    string
	UserID string
}

// BookmarkPatch carries the only mutable columns of a bookmark.
type BookmarkPatch struct {
	Title string
	URL   string
}
