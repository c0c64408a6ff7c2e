package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// Select returns the caller's bookmarks in id order.
func (s *Store) Select(ctx context.Context, token string, q backend.Query) ([]domain.Bookmark, error) {
	order := "asc"
	if q.Descending {
		order = "desc"
	}

	res, err := selectScript.Run(ctx, s.client,
		[]string{SessionKey(token), UserBookmarksKey(q.OwnerID)},
		q.OwnerID, KeyPrefixBookmark, order,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to select bookmarks: %w", policyError(err))
	}

	bookmarks := make([]domain.Bookmark, 0, len(res))
	for _, raw := range res {
		fields, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("unexpected bookmark row type %T", raw)
		}
		b, err := parseBookmarkRow(fields)
		if err != nil {
			s.logger.Warn("skipping unreadable bookmark row", logger.Error(err))
			continue
		}
		bookmarks = append(bookmarks, b)
	}

	return bookmarks, nil
}

// Insert adds a row owned by row.UserID, which must be the caller.
func (s *Store) Insert(ctx context.Context, token string, row domain.NewBookmark) (int64, error) {
	id, err := insertScript.Run(ctx, s.client,
		[]string{SessionKey(token), KeyBookmarkSeq},
		row.Title, row.URL, row.UserID,
		KeyPrefixBookmark, KeyPrefixUserBookmarks, ChannelPrefixChanges, domain.TableBookmarks,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to insert bookmark: %w", policyError(err))
	}
	return id, nil
}

// Update rewrites title and url of row id. It returns the number of rows affected.
func (s *Store) Update(ctx context.Context, token string, id int64, patch domain.BookmarkPatch) (int64, error) {
	n, err := updateScript.Run(ctx, s.client,
		[]string{SessionKey(token)},
		id, patch.Title, patch.URL,
		KeyPrefixBookmark, ChannelPrefixChanges, domain.TableBookmarks,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to update bookmark %d: %w", id, policyError(err))
	}
	return n, nil
}

// Delete removes row id. It returns the number of rows affected.
func (s *Store) Delete(ctx context.Context, token string, id int64) (int64, error) {
	n, err := deleteScript.Run(ctx, s.client,
		[]string{SessionKey(token)},
		id, KeyPrefixBookmark, KeyPrefixUserBookmarks, ChannelPrefixChanges, domain.TableBookmarks,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookmark %d: %w", id, policyError(err))
	}
	return n, nil
}

// parseBookmarkRow decodes an HMGET reply of id, title, url, user_id, created_at.
func parseBookmarkRow(fields []interface{}) (domain.Bookmark, error) {
	if len(fields) != 5 {
		return domain.Bookmark{}, fmt.Errorf("bookmark row has %d fields, want 5", len(fields))
	}

	str := make([]string, len(fields))
	for i, f := range fields {
		if f == nil {
			continue
		}
		v, ok := f.(string)
		if !ok {
			return domain.Bookmark{}, fmt.Errorf("bookmark field %d has type %T", i, f)
		}
		str[i] = v
	}

	id, err := strconv.ParseInt(str[0], 10, 64)
	if err != nil {
		return domain.Bookmark{}, fmt.Errorf("invalid bookmark id %q: %w", str[0], err)
	}

	b := domain.Bookmark{
		ID:     id,
		Title:  str[1],
		URL:    str[2],
		UserID: str[3],
	}
	if str[4] != "" {
		secs, err := strconv.ParseInt(str[4], 10, 64)
		if err != nil {
			return domain.Bookmark{}, fmt.Errorf("invalid created_at %q: %w", str[4], err)
		}
		b.CreatedAt = time.Unix(secs, 0)
	}

	return b, nil
}
