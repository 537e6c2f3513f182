package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/internal/ports"
)

// DefaultIntentTTL bounds how long a redirect intent survives the login round trip.
const DefaultIntentTTL = 10 * time.Minute

var _ ports.IntentStore = (*IntentStore)(nil)

// IntentStore keeps the redirect intent with a short TTL so it behaves as session-scoped storage.
type IntentStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewIntentStore creates a Redis-based intent store. A zero ttl uses DefaultIntentTTL.
func NewIntentStore(client redis.UniversalClient, opts TokenStoreOptions) (*IntentStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	key, err := scopedKey(opts.Prefix, opts.DeviceID, opts.Key)
	if err != nil {
		return nil, err
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	return &IntentStore{client: client, key: key, ttl: ttl}, nil
}

func (s *IntentStore) Save(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	if err := s.client.Set(ctx, s.key, path, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set intent: %w", err)
	}
	return nil
}

// Take reads and deletes the intent atomically (GETDEL).
func (s *IntentStore) Take(ctx context.Context) (string, bool, error) {
	path, err := s.client.GetDel(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis take intent: %w", err)
	}
	return path, path != "", nil
}
