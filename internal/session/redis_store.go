// Package session stores refresh-token sessions in Redis, keyed by
// token hash with the TTL enforcing expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound covers both unknown and expired sessions.
var ErrNotFound = errors.New("session not found or expired")

// TokenData is what a refresh token resolves to. RoleID is a hint for
// display; authorization re-reads the roster on every request.
type TokenData struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	RoleID      string    `json:"roleId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client; tests use this with
// miniredis.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "refresh:"}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Save stores a session under the token hash until expiresAt.
func (s *RedisStore) Save(ctx context.Context, tokenHash string, data TokenData, expiresAt time.Time) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	if err := s.client.Set(ctx, s.key(tokenHash), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup resolves a token hash to its session data.
func (s *RedisStore) Lookup(ctx context.Context, tokenHash string) (TokenData, error) {
	payload, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if err == redis.Nil {
		return TokenData{}, ErrNotFound
	}
	if err != nil {
		return TokenData{}, fmt.Errorf("lookup session: %w", err)
	}

	var data TokenData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return TokenData{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return data, nil
}

// Revoke deletes a session; revoking an absent session is not an error.
func (s *RedisStore) Revoke(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
