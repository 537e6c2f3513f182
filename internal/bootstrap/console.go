package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/jwtcodec"
	"github.com/target/mmk-console/internal/adapters/localstore"
	"github.com/target/mmk-console/internal/console"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
	"github.com/target/mmk-console/internal/service"
)

// ConsoleDeps contains dependencies for NewConsole.
type ConsoleDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Identity replaces the AUTH_MODE backend when set.
	Identity ports.IdentityClient
	// RedisClient is reused by the redis store backend when set.
	RedisClient redis.UniversalClient
	// Terminal is checked when CONSOLE_INTERACTIVE=auto. Defaults to os.Stdin.
	Terminal *os.File
}

// Console is the wired session subsystem: one SessionController shared by
// the guard, the HTTP dashboard and the CLI commands.
type Console struct {
	Session  *service.SessionController
	Guard    *console.Guard
	Location *console.Location
	Stores   *Stores
	Identity ports.IdentityClient
	Metrics  *statsd.Client

	LoginPath   string
	LandingPath string
	Interactive bool
}

// NewConsole builds stores, the identity backend and the session controller.
// The controller's initial refresh runs in the background bound to ctx;
// wait on Session.Ready() before reading a settled state.
func NewConsole(ctx context.Context, deps ConsoleDeps) (*Console, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	terminal := deps.Terminal
	if terminal == nil {
		terminal = os.Stdin
	}
	interactive := ResolveInteractive(cfg.Console.Interactive, terminal)

	c := &Console{
		LoginPath:   cfg.Console.LoginPath,
		LandingPath: cfg.Console.LandingPath,
		Interactive: interactive,
	}

	m := cfg.Observability.Metrics
	metricsClient, err := statsd.NewClient(statsd.Config{
		Enabled:    m.IsEnabled(),
		Address:    m.StatsdAddress,
		Prefix:     m.Prefix,
		Logger:     logger,
		GlobalTags: map[string]string{"auth_mode": string(cfg.Auth.Mode)},
	})
	if err != nil {
		// Metrics are optional; keep going with a client that drops everything.
		logger.WarnContext(ctx, "statsd unavailable; metrics disabled", "error", err)
		metricsClient, _ = statsd.NewClient(statsd.Config{Logger: logger})
	}
	c.Metrics = metricsClient

	stores, err := BuildStores(ctx, StoreDeps{
		Store:       cfg.Store,
		Redis:       cfg.Redis,
		RedisClient: deps.RedisClient,
		Interactive: interactive,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(err, c.Close())
	}
	c.Stores = stores

	identity := deps.Identity
	if identity == nil {
		identity, err = BuildIdentityClient(IdentityDeps{
			Auth:   cfg.Auth,
			Tokens: stores.Tokens,
			Logger: logger,
		})
		if err != nil {
			return nil, errors.Join(err, c.Close())
		}
	}
	c.Identity = identity

	c.Location = console.NewLocation(cfg.Console.LandingPath)

	var landing service.LandingResolver
	if len(cfg.Console.Locales) > 0 {
		landing = service.LocalePrefixResolver{
			Locales:     cfg.Console.Locales,
			LoginPath:   cfg.Console.LoginPath,
			LandingPath: cfg.Console.LandingPath,
			Current:     c.Location.Path,
		}
	}

	session, err := service.NewSessionController(ctx, service.SessionControllerOptions{
		Tokens:      stores.Tokens,
		Intents:     stores.Intents,
		Codec:       jwtcodec.New(),
		Identity:    identity,
		Navigator:   c.Location,
		LoginPath:   cfg.Console.LoginPath,
		LandingPath: cfg.Console.LandingPath,
		Landing:     landing,
		Metrics:     metricsClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("session controller: %w", err), c.Close())
	}
	c.Session = session

	guard, err := console.NewGuard(console.GuardOptions{
		Session:     session,
		Intents:     stores.Intents,
		Navigator:   c.Location,
		LoginPath:   cfg.Console.LoginPath,
		Interactive: interactive,
		Metrics:     metricsClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("route guard: %w", err), c.Close())
	}
	c.Guard = guard

	return c, nil
}

// WaitReady blocks until the initial session check has settled or ctx ends.
func (c *Console) WaitReady(ctx context.Context) error {
	select {
	case <-c.Session.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases store connections and the metrics socket.
func (c *Console) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Stores != nil {
		if err := c.Stores.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stores: %w", err))
		}
	}
	if c.Metrics != nil {
		if err := c.Metrics.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ResolveInteractive applies CONSOLE_INTERACTIVE; auto means "f is a terminal".
func ResolveInteractive(mode config.InteractiveMode, f *os.File) bool {
	switch mode {
	case config.InteractiveAlways:
		return true
	case config.InteractiveNever:
		return false
	default:
		return localstore.IsInteractive(f)
	}
}
