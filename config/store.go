package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreBackend selects where the token and redirect intent are kept.
type StoreBackend string

const (
	// StoreBackendFile keeps the token in a file under the user config directory.
	StoreBackendFile StoreBackend = "file"
	// StoreBackendMemory keeps everything in process memory.
	StoreBackendMemory StoreBackend = "memory"
	// StoreBackendRedis keeps both entries in Redis, scoped to this device.
	StoreBackendRedis StoreBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (b *StoreBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "file", "memory", "redis":
		*b = StoreBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: file, memory, redis)", v)
	}
}

// StoreConfig configures the token and redirect-intent stores.
type StoreConfig struct {
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"file"`

	// TokenKey names the persisted token entry.
	TokenKey string `env:"TOKEN_STORE_KEY" envDefault:"mmk_token"`
	// IntentKey names the session-scoped redirect intent entry.
	IntentKey string `env:"INTENT_STORE_KEY" envDefault:"mmk_redirect"`

	// Dir holds the token file; defaults to the user config directory.
	Dir string `env:"TOKEN_STORE_DIR"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `env:"STORE_KEY_PREFIX" envDefault:"mmk-console:"`
	// DeviceID scopes Redis keys to one operator machine; generated when empty.
	DeviceID string `env:"DEVICE_ID"`
	// IntentTTL bounds how long a redirect intent survives in Redis.
	IntentTTL time.Duration `env:"INTENT_TTL" envDefault:"10m"`
	// TokenTTL bounds how long the token survives in Redis; zero keeps it until cleared.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"0s"`
}

// Sanitize applies defaults to empty or out-of-range values.
func (s *StoreConfig) Sanitize() {
	if s.Backend == "" {
		s.Backend = StoreBackendFile
	}
	if s.TokenKey = strings.TrimSpace(s.TokenKey); s.TokenKey == "" {
		s.TokenKey = "mmk_token"
	}
	if s.IntentKey = strings.TrimSpace(s.IntentKey); s.IntentKey == "" {
		s.IntentKey = "mmk_redirect"
	}
	if s.KeyPrefix = strings.TrimSpace(s.KeyPrefix); s.KeyPrefix == "" {
		s.KeyPrefix = "mmk-console:"
	}
	s.Dir = strings.TrimSpace(s.Dir)
	s.DeviceID = strings.TrimSpace(s.DeviceID)
	if s.IntentTTL <= 0 {
		s.IntentTTL = 10 * time.Minute
	}
	if s.TokenTTL < 0 {
		s.TokenTTL = 0
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
