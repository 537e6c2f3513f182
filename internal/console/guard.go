package console

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	"github.com/target/mmk-console/internal/observability/metrics"
	"github.com/target/mmk-console/internal/observability/statsd"
	"github.com/target/mmk-console/internal/ports"
)

// Decision is what a protected region should do for a given SessionState.
type Decision string

const (
	// DecisionLoading renders only a neutral placeholder.
	DecisionLoading Decision = "loading"
	// DecisionRedirect sends the visitor to the login entry point.
	DecisionRedirect Decision = "redirect"
	// DecisionRender renders the protected content.
	DecisionRender Decision = "render"
)

// Decide maps a SessionState to a Decision. Nothing protected is rendered
// until the first check has finished and no check is in flight.
func Decide(st domainauth.SessionState) Decision {
	switch {
	case !st.IsInitialized || st.IsLoading:
		return DecisionLoading
	case !st.IsAuthenticated:
		return DecisionRedirect
	default:
		return DecisionRender
	}
}

// GuardOptions groups dependencies for Guard.
type GuardOptions struct {
	Session   ports.Session
	Intents   ports.IntentStore
	Navigator ports.Navigator
	LoginPath string
	// Interactive is false when nobody can follow a redirect (batch and CI runs);
	// redirect intents are then not recorded.
	Interactive bool
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// Guard applies Decide to protected paths and performs the redirect side effects.
type Guard struct {
	session     ports.Session
	intents     ports.IntentStore
	navigator   ports.Navigator
	loginPath   string
	interactive bool
	metrics     statsd.Sink
	logger      *slog.Logger
}

// NewGuard validates opts and builds a Guard.
func NewGuard(opts GuardOptions) (*Guard, error) {
	if opts.Session == nil {
		return nil, errors.New("session is required")
	}
	if opts.Intents == nil {
		return nil, errors.New("intent store is required")
	}
	if opts.Navigator == nil {
		return nil, errors.New("navigator is required")
	}
	if opts.LoginPath == "" {
		return nil, errors.New("login path is required")
	}
	g := &Guard{
		session:     opts.Session,
		intents:     opts.Intents,
		navigator:   opts.Navigator,
		loginPath:   opts.LoginPath,
		interactive: opts.Interactive,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// LoginPath returns the login entry point.
func (g *Guard) LoginPath() string { return g.loginPath }

// Current decides for the current state without any side effects.
func (g *Guard) Current() (Decision, domainauth.SessionState) {
	st := g.session.State()
	return Decide(st), st
}

// Evaluate decides for the current state. On redirect it records currentPath
// as the RedirectIntent and navigates to the login entry point.
func (g *Guard) Evaluate(ctx context.Context, currentPath string) (Decision, domainauth.SessionState) {
	st := g.session.State()
	return g.apply(ctx, st, currentPath), st
}

// Watch evaluates now and again on every SessionState change, calling
// onDecision whenever the decision changes. It stops when ctx ends or stop is called.
func (g *Guard) Watch(ctx context.Context, pathFn func() string, onDecision func(Decision)) (stop func()) {
	var (
		mu   sync.Mutex
		last Decision
		done atomic.Bool
	)
	// handleLocked must be called with mu held.
	handleLocked := func(st domainauth.SessionState) {
		if done.Load() {
			return
		}
		d := Decide(st)
		if d == last {
			return
		}
		last = d
		g.apply(ctx, st, pathFn())
		onDecision(d)
	}

	unsubscribe := g.session.Subscribe(func(st domainauth.SessionState) {
		mu.Lock()
		defer mu.Unlock()
		handleLocked(st)
	})

	mu.Lock()
	handleLocked(g.session.State())
	mu.Unlock()

	var once sync.Once
	halt := func() {
		once.Do(func() {
			done.Store(true)
			unsubscribe()
		})
	}
	cancelAfter := context.AfterFunc(ctx, halt)
	return func() {
		cancelAfter()
		halt()
	}
}

func (g *Guard) apply(ctx context.Context, st domainauth.SessionState, currentPath string) Decision {
	d := Decide(st)
	metrics.EmitGuardDecision(g.metrics, string(d))
	if d != DecisionRedirect {
		return d
	}

	if g.interactive && !g.isLoginPath(currentPath) {
		if err := g.intents.Save(ctx, currentPath); err != nil {
			g.logger.WarnContext(ctx, "record redirect intent", "path", currentPath, "error", err)
		}
	}
	g.navigator.Navigate(ctx, g.loginPath)
	return d
}

func (g *Guard) isLoginPath(p string) bool {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return p == g.loginPath
}
