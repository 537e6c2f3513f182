package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/localstore"
	redisadapter "github.com/target/mmk-console/internal/adapters/redis"
	"github.com/target/mmk-console/internal/ports"
)

const deviceIDFile = "device_id"

// StoreDeps contains what BuildStores needs to select a storage backend.
type StoreDeps struct {
	Store config.StoreConfig
	Redis config.RedisConfig
	// RedisClient, when set, is used instead of dialing Config.Redis and is
	// not closed by Stores.Close.
	RedisClient redis.UniversalClient
	// Interactive is false for batch runs; both stores are then no-ops and
	// no backend is opened.
	Interactive bool
	Logger      *slog.Logger
}

// Stores holds the token and redirect-intent stores for one console.
type Stores struct {
	Tokens  ports.TokenStore
	Intents ports.IntentStore
	// Location describes where tokens live, for log lines and the status command.
	Location string

	closers []func() error
}

// Close releases connections opened by BuildStores.
func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// BuildStores creates the stores for the configured STORE_BACKEND.
func BuildStores(ctx context.Context, deps StoreDeps) (*Stores, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !deps.Interactive {
		logger.DebugContext(ctx, "non-interactive run; session storage disabled")
		return &Stores{Tokens: localstore.Noop{}, Intents: localstore.Noop{}, Location: "none"}, nil
	}

	var (
		stores *Stores
		err    error
	)
	switch deps.Store.Backend {
	case config.StoreBackendMemory:
		stores = &Stores{
			Tokens:   localstore.NewMemoryTokenStore(),
			Intents:  localstore.NewMemoryIntentStore(),
			Location: "memory",
		}
	case config.StoreBackendRedis:
		stores, err = buildRedisStores(ctx, deps, logger)
	case config.StoreBackendFile, "":
		stores, err = buildFileStores(deps.Store)
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", deps.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "token store ready",
		"backend", string(deps.Store.Backend),
		"location", stores.Location)
	return stores, nil
}

func buildFileStores(cfg config.StoreConfig) (*Stores, error) {
	dir, err := storeDir(cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := localstore.NewFileStore(dir, cfg.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("file token store: %w", err)
	}
	// The intent only has to survive one login round trip inside this process.
	return &Stores{
		Tokens:   tokens,
		Intents:  localstore.NewMemoryIntentStore(),
		Location: tokens.Path(),
	}, nil
}

func buildRedisStores(ctx context.Context, deps StoreDeps, logger *slog.Logger) (*Stores, error) {
	cfg := deps.Store
	deviceID := cfg.DeviceID
	if deviceID == "" {
		dir, err := storeDir(cfg)
		if err != nil {
			return nil, err
		}
		if deviceID, err = ResolveDeviceID(dir); err != nil {
			return nil, err
		}
	}

	stores := &Stores{}
	client := deps.RedisClient
	if client == nil {
		var err error
		client, err = ConnectRedis(ctx, RedisOptions{Config: deps.Redis, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.closers = append(stores.closers, client.Close)
	}

	tokens, err := redisadapter.NewTokenStore(client, redisadapter.TokenStoreOptions{
		Prefix:   cfg.KeyPrefix,
		DeviceID: deviceID,
		Key:      cfg.TokenKey,
		TTL:      cfg.TokenTTL,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("redis token store: %w", err), stores.Close())
	}
	intents, err := redisadapter.NewIntentStore(client, redisadapter.TokenStoreOptions{
		Prefix:   cfg.KeyPrefix,
		DeviceID: deviceID,
		Key:      cfg.IntentKey,
		TTL:      cfg.IntentTTL,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("redis intent store: %w", err), stores.Close())
	}

	stores.Tokens = tokens
	stores.Intents = intents
	stores.Location = "redis:" + tokens.Key()
	return stores, nil
}

func storeDir(cfg config.StoreConfig) (string, error) {
	if cfg.Dir != "" {
		return cfg.Dir, nil
	}
	return localstore.DefaultDir()
}

// ResolveDeviceID returns the id that namespaces this machine's Redis keys.
// It is generated once and kept in dir so every run of the console on the
// same machine shares one token.
func ResolveDeviceID(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("device id directory is required")
	}
	path := filepath.Join(dir, deviceIDFile)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		id, perr := uuid.Parse(strings.TrimSpace(string(data)))
		if perr == nil {
			return id.String(), nil
		}
		// A damaged file is replaced below.
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create device id dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	return id, nil
}
