package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// Session hash fields
const (
	fieldUserID    = "user_id"
	fieldProvider  = "provider"
	fieldExpiresAt = "expires_at"
)

// Issue creates a session for userID, as the identity provider does after a
// successful third-party login.
func (s *Store) Issue(ctx context.Context, userID, provider string, ttl time.Duration) (*domain.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("issue session: empty user id")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("issue session: ttl must be > 0, got %v", ttl)
	}

	sess := &domain.Session{
		UserID:      userID,
		AccessToken: uuid.NewString(),
		Provider:    provider,
		ExpiresAt:   time.Now().Add(ttl).Truncate(time.Second),
	}

	key := SessionKey(sess.AccessToken)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldUserID, sess.UserID,
			fieldProvider, sess.Provider,
			fieldExpiresAt, sess.ExpiresAt.Unix(),
		)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("session issued",
		logger.String("user_id", userID),
		logger.String("provider", provider),
		logger.Duration("ttl", ttl))

	return sess, nil
}

// Verify resolves a token to its session.
func (s *Store) Verify(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, backend.ErrInvalidSession
	}

	fields, err := s.client.HGetAll(ctx, SessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 || fields[fieldUserID] == "" {
		return nil, backend.ErrInvalidSession
	}

	sess := &domain.Session{
		UserID:      fields[fieldUserID],
		AccessToken: token,
		Provider:    fields[fieldProvider],
	}
	if raw := fields[fieldExpiresAt]; raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt session expiry %q: %w", raw, err)
		}
		sess.ExpiresAt = time.Unix(secs, 0)
	}

	return sess, nil
}

// Refresh pushes the expiry of a live session ttl into the future.
func (s *Store) Refresh(ctx context.Context, token string, ttl time.Duration) (*domain.Session, error) {
	expiresAt := time.Now().Add(ttl).Truncate(time.Second)
	n, err := refreshSessionScript.Run(ctx, s.client,
		[]string{SessionKey(token)},
		ttl.Milliseconds(), expiresAt.Unix(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to extend session: %w", err)
	}
	if n == 0 {
		return nil, backend.ErrInvalidSession
	}

	return s.Verify(ctx, token)
}

// Revoke deletes a session. Revoking an unknown token is not an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, SessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
