package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/mmk-console/config"
	httpx "github.com/target/mmk-console/internal/http"
)

// HTTPServerConfig contains configuration for the localhost dashboard server.
type HTTPServerConfig struct {
	HTTP    config.HTTPConfig
	Console *Console
	Logger  *slog.Logger
}

// StartHTTPServer builds the dashboard router, binds the listener and serves
// in the background. Binding happens before returning so an address in use
// is reported to the caller instead of only being logged.
func StartHTTPServer(cfg HTTPServerConfig) (*http.Server, error) {
	if cfg.Console == nil {
		return nil, errors.New("console is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := httpx.NewRouter(httpx.RouterServices{
		Session:     cfg.Console.Session,
		Guard:       cfg.Console.Guard,
		Location:    cfg.Console.Location,
		LandingPath: cfg.Console.LandingPath,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	addr := cfg.HTTP.Addr
	// Guard against empty addr to avoid listening on every interface
	if addr == "" {
		addr = "127.0.0.1:8088"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: /session/events is a long-lived stream.
		IdleTimeout: 120 * time.Second,
	}

	// Request contexts end when Shutdown starts so event streams return.
	baseCtx, cancel := context.WithCancel(context.Background())
	server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	server.RegisterOnShutdown(cancel)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		cancel()
		return nil, err
	}
	server.Addr = ln.Addr().String()

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if serr := server.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serr)
		}
	}()

	return server, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Timeout time.Duration
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return errors.Join(err, cfg.Server.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}
