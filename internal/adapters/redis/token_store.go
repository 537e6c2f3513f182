// Package redis provides Redis-based token and intent stores for the console.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/internal/ports"
)

var _ ports.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the bearer token under a single key scoped to one device.
type TokenStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// TokenStoreOptions configures a TokenStore.
type TokenStoreOptions struct {
	// Prefix namespaces all console keys (e.g., "mmk-console:").
	Prefix string
	// DeviceID scopes the token to one operator machine.
	DeviceID string
	// Key is the entry name (e.g., "mmk_token").
	Key string
	// TTL bounds how long the token is kept; zero keeps it until cleared.
	TTL time.Duration
}

// NewTokenStore creates a Redis-based token store.
func NewTokenStore(client redis.UniversalClient, opts TokenStoreOptions) (*TokenStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	key, err := scopedKey(opts.Prefix, opts.DeviceID, opts.Key)
	if err != nil {
		return nil, err
	}
	return &TokenStore{client: client, key: key, ttl: opts.TTL}, nil
}

// Key returns the fully-qualified Redis key.
func (s *TokenStore) Key() string { return s.key }

func (s *TokenStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get token: %w", err)
	}
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

func (s *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete token: %w", err)
	}
	return nil
}

func scopedKey(prefix, deviceID, name string) (string, error) {
	deviceID = strings.TrimSpace(deviceID)
	name = strings.TrimSpace(name)
	if deviceID == "" {
		return "", errors.New("device ID is required")
	}
	if name == "" {
		return "", errors.New("key name is required")
	}
	return prefix + deviceID + ":" + name, nil
}
