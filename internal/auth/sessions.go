package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists bearer tokens and OAuth state nonces
type SessionStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	SaveState(ctx context.Context, state, provider string, ttl time.Duration) error
	TakeState(ctx context.Context, state string) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisSessionStore implements SessionStore on Redis. Expiry is delegated to
// Redis TTLs; no separate reaper is needed.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore connects to Redis and verifies connectivity
func NewRedisSessionStore(address, password string, db int) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisSessionStore{client: client}, nil
}

func sessionKey(token string) string {
	return "session:" + token
}

func stateKey(state string) string {
	return "oauth_state:" + state
}

// Save stores a session token with its TTL
func (s *RedisSessionStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Lookup resolves a token to a user ID; returns "" for unknown or expired
// tokens
func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	return userID, nil
}

// Delete removes a session token
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveState stores an OAuth state nonce bound to its provider
func (s *RedisSessionStore) SaveState(ctx context.Context, state, provider string, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKey(state), provider, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// TakeState consumes an OAuth state nonce, returning its provider.
// A nonce can be taken once; "" means unknown or already used.
func (s *RedisSessionStore) TakeState(ctx context.Context, state string) (string, error) {
	provider, err := s.client.GetDel(ctx, stateKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to take oauth state: %w", err)
	}
	return provider, nil
}

// Ping verifies Redis connectivity
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
