package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/mmk-console/internal/console"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Session     SessionService
	Guard       *console.Guard
	Location    PathSource
	LandingPath string
	Logger      *slog.Logger
}

// NewRouter creates the localhost dashboard router with its middleware chain.
func NewRouter(services RouterServices) (http.Handler, error) {
	if services.Session == nil || services.Guard == nil {
		return nil, errors.New("session and guard are required")
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer, err := NewRenderer(logger)
	if err != nil {
		return nil, err
	}

	loginPath := services.Guard.LoginPath()
	authHandlers := &AuthHandlers{
		Session:     services.Session,
		Location:    services.Location,
		Renderer:    renderer,
		LoginPath:   loginPath,
		LandingPath: services.LandingPath,
		Logger:      logger,
	}
	pages := &PageHandlers{Renderer: renderer}
	protect := RequireSession(services.Guard, renderer.Placeholder())

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	mux.HandleFunc("GET "+loginPath, authHandlers.LoginForm)
	mux.HandleFunc("POST "+loginPath, authHandlers.LoginSubmit)
	mux.HandleFunc("POST /logout", authHandlers.Logout)
	mux.HandleFunc("GET /auth/status", authHandlers.Status)
	mux.HandleFunc("POST /auth/refresh", authHandlers.Refresh)
	mux.Handle("GET /session/events", &SessionEventsHandler{
		Guard:       services.Guard,
		Location:    services.Location,
		LandingPath: services.LandingPath,
		Logger:      logger,
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, services.LandingPath, http.StatusSeeOther)
	})
	if services.LandingPath != "" && services.LandingPath != "/" {
		mux.Handle("GET "+services.LandingPath, protect(http.HandlerFunc(pages.Dashboard)))
	}
	mux.Handle("GET /{section}", protect(http.HandlerFunc(pages.Section)))

	var handler http.Handler = mux
	handler = CSRFProtection(CSRFConfig{})(handler)
	handler = BrowserDetection()(handler)
	handler = Logging(logger)(handler)
	handler = RequestID()(handler)
	handler = Recover(logger)(handler)
	return handler, nil
}
