package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
	"golang.org/x/sync/singleflight"
)

const refreshFlightKey = "refresh"

// SessionControllerOptions groups dependencies for SessionController.
type SessionControllerOptions struct {
	Tokens    ports.TokenStore
	Intents   ports.IntentStore
	Codec     ports.TokenCodec
	Identity  ports.IdentityClient
	Navigator ports.Navigator

	LoginPath   string
	LandingPath string
	// Landing overrides the default SafeIntentResolver.
	Landing LandingResolver

	Metrics statsd.Sink
	Logger  *slog.Logger
}

// SessionController owns the console's single SessionState and sequences
// token storage, token decoding and the identity round trip.
// It is safe for concurrent use.
type SessionController struct {
	tokens    ports.TokenStore
	intents   ports.IntentStore
	codec     ports.TokenCodec
	identity  ports.IdentityClient
	navigator ports.Navigator
	landing   LandingResolver
	loginPath string
	metrics   statsd.Sink
	logger    *slog.Logger

	flight singleflight.Group

	mu        sync.Mutex
	state     domainauth.SessionState
	seq       uint64 // advanced by each new refresh flight and by Logout
	inflight  int
	listeners map[uint64]func(domainauth.SessionState)
	nextID    uint64

	// notifyMu serializes publication so listeners observe states in order.
	notifyMu  sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

var _ ports.Session = (*SessionController)(nil)

// NewSessionController constructs the controller and starts exactly one
// background refresh bound to ctx.
func NewSessionController(ctx context.Context, opts SessionControllerOptions) (*SessionController, error) {
	switch {
	case opts.Tokens == nil:
		return nil, errors.New("token store is required")
	case opts.Intents == nil:
		return nil, errors.New("intent store is required")
	case opts.Codec == nil:
		return nil, errors.New("token codec is required")
	case opts.Identity == nil:
		return nil, errors.New("identity client is required")
	case opts.Navigator == nil:
		return nil, errors.New("navigator is required")
	case opts.LoginPath == "" || opts.LandingPath == "":
		return nil, errors.New("login and landing paths are required")
	}

	c := &SessionController{
		tokens:    opts.Tokens,
		intents:   opts.Intents,
		codec:     opts.Codec,
		identity:  opts.Identity,
		navigator: opts.Navigator,
		landing:   opts.Landing,
		loginPath: opts.LoginPath,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		listeners: make(map[uint64]func(domainauth.SessionState)),
		ready:     make(chan struct{}),
	}
	if c.landing == nil {
		c.landing = SafeIntentResolver{LoginPath: opts.LoginPath, LandingPath: opts.LandingPath}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "session")

	go func() {
		// Failures are already reflected in state and logged.
		_ = c.Refresh(ctx)
	}()

	return c, nil
}

// State returns a copy of the current SessionState.
func (c *SessionController) State() domainauth.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Ready is closed once the first refresh has completed, including its navigation.
func (c *SessionController) Ready() <-chan struct{} { return c.ready }

// Subscribe registers fn to be called with a copy of the state after every change.
// fn runs on the goroutine that made the change and must not call Refresh, Login or Logout.
func (c *SessionController) Subscribe(fn func(domainauth.SessionState)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Refresh re-derives the session from the stored token. Concurrent callers
// share one in-flight check. The returned error is the check failure, if any;
// it is also reflected in state as not authenticated.
// A caller whose ctx ends stops waiting; the shared check still completes and updates state.
func (c *SessionController) Refresh(ctx context.Context) error {
	ch := c.flight.DoChan(refreshFlightKey, func() (any, error) {
		return nil, c.runRefresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Login authenticates with creds, stores the returned token and runs a fresh refresh.
func (c *SessionController) Login(ctx context.Context, creds domainauth.Credentials) error {
	start := time.Now()
	res, err := c.identity.Login(ctx, creds)
	if err == nil && res.Token == "" {
		err = errors.New("identity backend returned an empty token")
	}
	if err != nil {
		if !apperrors.IsLogin(err) {
			err = apperrors.Login(err)
		}
		c.emit(metrics.OpLogin, metrics.ResultError, start, err)
		c.logger.InfoContext(ctx, "login rejected", "user", creds.Username, "error", err)
		return err
	}

	if err = c.tokens.Set(ctx, res.Token); err != nil {
		err = apperrors.Wrap(err, apperrors.ErrCodeInternal, "store token")
		c.emit(metrics.OpLogin, metrics.ResultError, start, err)
		return err
	}
	c.emit(metrics.OpLogin, metrics.ResultSuccess, start, nil)

	// A check started before the new token was stored must not be shared.
	c.flight.Forget(refreshFlightKey)
	return c.Refresh(ctx)
}

// Logout clears the local session. The remote logout is best effort and its
// failure is logged, never returned.
func (c *SessionController) Logout(ctx context.Context) {
	start := time.Now()

	token, _, err := c.tokens.Get(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read token for logout", "error", err)
	}
	var remoteErr error
	if rerr := c.identity.Logout(ctx, token); rerr != nil {
		remoteErr = apperrors.Logout(rerr)
		c.logger.WarnContext(ctx, "remote logout failed", "error", remoteErr)
	}
	if cerr := c.tokens.Clear(ctx); cerr != nil {
		c.logger.ErrorContext(ctx, "clear stored token", "error", cerr)
	}

	c.mu.Lock()
	c.seq++
	c.state.Identity = nil
	c.state.IsAuthenticated = false
	c.mu.Unlock()
	c.flight.Forget(refreshFlightKey)

	c.publish()
	c.navigator.Navigate(ctx, c.loginPath)

	result := metrics.ResultSuccess
	if remoteErr != nil {
		result = metrics.ResultError
	}
	c.emit(metrics.OpLogout, result, start, remoteErr)
	c.logger.InfoContext(ctx, "logged out")
}

// runRefresh is one refresh flight: mark loading, check, then apply the
// outcome unless a newer flight or a logout superseded it.
func (c *SessionController) runRefresh(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.inflight++
	c.state.IsLoading = true
	c.mu.Unlock()
	c.publish()
	defer c.readyOnce.Do(func() { close(c.ready) })

	id, checkErr := c.check(ctx)

	c.mu.Lock()
	current := c.seq == seq
	if current {
		if checkErr == nil {
			c.state.Identity = &id
			c.state.IsAuthenticated = true
		} else {
			c.state.Identity = nil
			c.state.IsAuthenticated = false
		}
	}
	c.inflight--
	c.state.IsLoading = c.inflight > 0
	c.state.IsInitialized = true
	phase := c.state.Phase()
	c.mu.Unlock()

	c.publish()

	if !current {
		c.emit(metrics.OpRefresh, metrics.ResultStale, start, checkErr)
		c.logger.DebugContext(ctx, "refresh superseded", "error", checkErr)
		return checkErr
	}

	if checkErr != nil {
		c.emit(metrics.OpRefresh, metrics.ResultError, start, checkErr)
		c.logger.InfoContext(ctx, "session not authenticated", "phase", phase, "reason", apperrors.GetCode(checkErr), "error", checkErr)
		c.navigator.Navigate(ctx, c.loginPath)
		return checkErr
	}

	c.emit(metrics.OpRefresh, metrics.ResultSuccess, start, nil)
	c.logger.InfoContext(ctx, "session authenticated", "phase", phase, "user_id", id.ID)
	c.navigator.Navigate(ctx, c.postAuthTarget(ctx))
	return nil
}

// check reads the token and, when it is present and unexpired, asks the backend who it belongs to.
func (c *SessionController) check(ctx context.Context) (domainauth.Identity, error) {
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "read token")
	}
	if !ok {
		return domainauth.Identity{}, apperrors.MissingToken()
	}
	if c.codec.IsExpired(token) {
		return domainauth.Identity{}, apperrors.ExpiredToken()
	}

	id, err := c.identity.FetchCurrentIdentity(ctx, token)
	if err != nil {
		if !apperrors.IsIdentityFetch(err) {
			err = apperrors.IdentityFetch(err)
		}
		return domainauth.Identity{}, err
	}
	return id, nil
}

// postAuthTarget consumes the RedirectIntent and resolves the landing path.
func (c *SessionController) postAuthTarget(ctx context.Context) string {
	intent, ok, err := c.intents.Take(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "read redirect intent", "error", err)
		ok = false
	}
	return c.landing.Resolve(intent, ok)
}

func (c *SessionController) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	st := c.state.Clone()
	fns := make([]func(domainauth.SessionState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st.Clone())
	}
}

func (c *SessionController) emit(op, result string, start time.Time, err error) {
	metrics.EmitSession(c.metrics, metrics.SessionMetric{
		Op:       op,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
}
