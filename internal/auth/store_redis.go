package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ailawyer-pro/ailawyer/internal/models"
)

const redisKeyPrefix = "ailawyer:session:"

// RedisSessionStore keeps sessions in Redis with a TTL matching their expiry
type RedisSessionStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(rdb redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, now: time.Now}
}

func redisSessionKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, session *models.Session) error {
	now := s.now()
	if session.ID == "" {
		session.ID = models.NewID()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now.UTC()
	}

	ttl := session.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("failed to create session: %w", ErrSessionExpired)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, redisSessionKey(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.rdb.Get(ctx, redisSessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, redisSessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts sessions when their TTL lapses.
func (s *RedisSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
