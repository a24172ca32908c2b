package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore registers live session token IDs.
type SessionStore interface {
	Save(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error
	Exists(ctx context.Context, jti string) (bool, error)
	Delete(ctx context.Context, jti string, userID uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type sessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisSessionStore keeps one key per session plus a per-user index set so
// every session of a user can be revoked at once.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore connects to redisURL and verifies the connection.
func NewRedisSessionStore(ctx context.Context, redisURL string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisSessionStoreWithClient(client), nil
}

// NewRedisSessionStoreWithClient wraps an existing client.
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "livia:"}
}

func (s *RedisSessionStore) sessionKey(jti string) string {
	return s.prefix + "session:" + jti
}

func (s *RedisSessionStore) userKey(userID uuid.UUID) string {
	return s.prefix + "user_sessions:" + userID.String()
}

// Save registers jti until expiresAt.
func (s *RedisSessionStore) Save(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	data, err := json.Marshal(sessionData{UserID: userID.String(), CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("save session: expiry %s is in the past", expiresAt.Format(time.RFC3339))
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(jti), data, ttl)
	pipe.SAdd(ctx, s.userKey(userID), jti)
	pipe.Expire(ctx, s.userKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Exists reports whether jti is still registered.
func (s *RedisSessionStore) Exists(ctx context.Context, jti string) (bool, error) {
	_, err := s.client.Get(ctx, s.sessionKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return true, nil
}

// Delete removes a single session.
func (s *RedisSessionStore) Delete(ctx context.Context, jti string, userID uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(jti))
	pipe.SRem(ctx, s.userKey(userID), jti)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every session registered for userID.
func (s *RedisSessionStore) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	jtis, err := s.client.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user sessions: %w", err)
	}

	keys := make([]string, 0, len(jtis)+1)
	for _, jti := range jtis {
		keys = append(keys, s.sessionKey(jti))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
