package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, logger.New("error", false)), mr
}

func issue(t *testing.T, s *Store, userID string) *domain.Session {
	t.Helper()
	sess, err := s.Issue(context.Background(), userID, "google", time.Hour)
	require.NoError(t, err)
	return sess
}

func TestSessionLifecycle(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sess := issue(t, s, "user-a")
	assert.NotEmpty(t, sess.AccessToken)
	assert.True(t, mr.Exists(SessionKey(sess.AccessToken)))

	got, err := s.Verify(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-a", got.UserID)
	assert.Equal(t, "google", got.Provider)
	assert.Equal(t, sess.ExpiresAt.Unix(), got.ExpiresAt.Unix())

	refreshed, err := s.Refresh(ctx, sess.AccessToken, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(sess.ExpiresAt))
	assert.Equal(t, 2*time.Hour, mr.TTL(SessionKey(sess.AccessToken)))

	require.NoError(t, s.Revoke(ctx, sess.AccessToken))
	_, err = s.Verify(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, backend.ErrInvalidSession)

	_, err = s.Refresh(ctx, sess.AccessToken, time.Hour)
	assert.ErrorIs(t, err, backend.ErrInvalidSession)
}

func TestSessionExpires(t *testing.T) {
	s, mr := newTestStore(t)

	sess := issue(t, s, "user-a")
	mr.FastForward(2 * time.Hour)

	_, err := s.Verify(context.Background(), sess.AccessToken)
	assert.ErrorIs(t, err, backend.ErrInvalidSession)
}

func TestRefreshDoesNotRecreateExpiredSession(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sess := issue(t, s, "user-a")
	mr.FastForward(2 * time.Hour)

	_, err := s.Refresh(ctx, sess.AccessToken, time.Hour)
	assert.ErrorIs(t, err, backend.ErrInvalidSession)
	assert.False(t, mr.Exists(SessionKey(sess.AccessToken)))

	_, err = s.Refresh(ctx, "unknown-token", time.Hour)
	assert.ErrorIs(t, err, backend.ErrInvalidSession)
	assert.False(t, mr.Exists(SessionKey("unknown-token")))
}

func TestInsertSelectOrdersNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := issue(t, s, "user-a")

	first, err := s.Insert(ctx, sess.AccessToken, domain.NewBookmark{Title: "One", URL: "https://one.example", UserID: "user-a"})
	require.NoError(t, err)
	second, err := s.Insert(ctx, sess.AccessToken, domain.NewBookmark{Title: "Two", URL: "https://two.example", UserID: "user-a"})
	require.NoError(t, err)
	assert.Greater(t, second, first)

	rows, err := s.Select(ctx, sess.AccessToken, backend.Query{OwnerID: "user-a", Descending: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second, rows[0].ID)
	assert.Equal(t, "Two", rows[0].Title)
	assert.Equal(t, "https://two.example", rows[0].URL)
	assert.Equal(t, "user-a", rows[0].UserID)
	assert.False(t, rows[0].CreatedAt.IsZero())
	assert.Equal(t, first, rows[1].ID)

	asc, err := s.Select(ctx, sess.AccessToken, backend.Query{OwnerID: "user-a"})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, first, asc[0].ID)
}

func TestRowPolicy(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	alice := issue(t, s, "alice")
	bob := issue(t, s, "bob")

	id, err := s.Insert(ctx, alice.AccessToken, domain.NewBookmark{Title: "Mine", URL: "https://a.example", UserID: "alice"})
	require.NoError(t, err)

	t.Run("insert for another owner is denied", func(t *testing.T) {
		_, err := s.Insert(ctx, bob.AccessToken, domain.NewBookmark{Title: "x", URL: "https://x.example", UserID: "alice"})
		assert.ErrorIs(t, err, backend.ErrPermissionDenied)
	})

	t.Run("select of another owner is empty", func(t *testing.T) {
		rows, err := s.Select(ctx, bob.AccessToken, backend.Query{OwnerID: "alice", Descending: true})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("update of another owner's row affects nothing", func(t *testing.T) {
		n, err := s.Update(ctx, bob.AccessToken, id, domain.BookmarkPatch{Title: "hijack", URL: "https://evil.example"})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("delete of another owner's row affects nothing", func(t *testing.T) {
		n, err := s.Delete(ctx, bob.AccessToken, id)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unknown token is unauthorized", func(t *testing.T) {
		_, err := s.Select(ctx, "nope", backend.Query{OwnerID: "alice"})
		assert.ErrorIs(t, err, backend.ErrUnauthorized)
		_, err = s.Delete(ctx, "nope", id)
		assert.ErrorIs(t, err, backend.ErrUnauthorized)
	})

	rows, err := s.Select(ctx, alice.AccessToken, backend.Query{OwnerID: "alice", Descending: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Mine", rows[0].Title)
}

func TestUpdateAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess := issue(t, s, "alice")

	id, err := s.Insert(ctx, sess.AccessToken, domain.NewBookmark{Title: "Old", URL: "https://old.example", UserID: "alice"})
	require.NoError(t, err)

	n, err := s.Update(ctx, sess.AccessToken, id, domain.BookmarkPatch{Title: "New", URL: "https://new.example"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err := s.Select(ctx, sess.AccessToken, backend.Query{OwnerID: "alice", Descending: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].ID)
	assert.Equal(t, "New", rows[0].Title)
	assert.Equal(t, "https://new.example", rows[0].URL)

	n, err = s.Delete(ctx, sess.AccessToken, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err = s.Select(ctx, sess.AccessToken, backend.Query{OwnerID: "alice", Descending: true})
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err = s.Delete(ctx, sess.AccessToken, id)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChangeFeed(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	alice := issue(t, s, "alice")
	bob := issue(t, s, "bob")

	events := make(chan domain.ChangeEvent, 8)
	sub, err := s.Subscribe(ctx, alice.AccessToken, "alice", func(e domain.ChangeEvent) { events <- e })
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	_, err = s.Insert(ctx, bob.AccessToken, domain.NewBookmark{Title: "Bob's", URL: "https://b.example", UserID: "bob"})
	require.NoError(t, err)
	id, err := s.Insert(ctx, alice.AccessToken, domain.NewBookmark{Title: "Alice's", URL: "https://a.example", UserID: "alice"})
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, domain.ChangeInsert, e.Type)
		assert.Equal(t, domain.TableBookmarks, e.Table)
		assert.Equal(t, id, e.RecordID)
		assert.Equal(t, "alice", e.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change event received")
	}

	_, err = s.Delete(ctx, alice.AccessToken, id)
	require.NoError(t, err)
	select {
	case e := <-events:
		assert.Equal(t, domain.ChangeDelete, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no delete event received")
	}

	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Close(), "Close should be idempotent")
}

func TestChangeFeedRequiresOwner(t *testing.T) {
	s, _ := newTestStore(t)
	bob := issue(t, s, "bob")

	_, err := s.Subscribe(context.Background(), bob.AccessToken, "alice", func(domain.ChangeEvent) {})
	assert.ErrorIs(t, err, backend.ErrPermissionDenied)

	_, err = s.Subscribe(context.Background(), "unknown", "alice", func(domain.ChangeEvent) {})
	assert.ErrorIs(t, err, backend.ErrInvalidSession)
}

func TestParseBookmarkRow(t *testing.T) {
	_, err := parseBookmarkRow([]interface{}{"1", "t"})
	assert.Error(t, err)

	_, err = parseBookmarkRow([]interface{}{"x", "t", "https://u", "a", nil})
	assert.Error(t, err)

	b, err := parseBookmarkRow([]interface{}{"7", "t", "https://u", "a", nil})
	require.NoError(t, err)
	assert.EqualValues(t, 7, b.ID)
	assert.True(t, b.CreatedAt.IsZero())
}
