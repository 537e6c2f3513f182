package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// SessionService is the session controller as seen by the HTTP handlers.
type SessionService interface {
	ports.Session
	Login(ctx context.Context, creds domainauth.Credentials) error
}

// PathSource reports where the console has navigated to and announces later navigations.
type PathSource interface {
	Path() string
	Observe(fn func(path string)) func()
}

// AuthHandlers provides HTTP handlers for the login form, logout and status.
type AuthHandlers struct {
	Session     SessionService
	Location    PathSource
	Renderer    *Renderer
	LoginPath   string
	LandingPath string
	Logger      *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// LoginForm renders the login page.
// GET /login.
func (h *AuthHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	st := h.Session.State()
	if st.IsInitialized && !st.IsLoading && st.IsAuthenticated {
		redirect(w, r, h.LandingPath)
		return
	}
	h.Renderer.Render(w, r, "login", http.StatusOK, h.loginPage(r, "", ""))
}

// LoginSubmit authenticates with the posted credentials.
// POST /login. On success the client follows the session controller's
// post-authentication navigation; on failure the form is shown again.
func (h *AuthHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	creds := domainauth.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	if creds.Username == "" || creds.Password == "" {
		h.Renderer.Render(w, r, "login", http.StatusBadRequest,
			h.loginPage(r, creds.Username, "Username and password are required."))
		return
	}

	err := h.Session.Login(r.Context(), creds)
	if err != nil {
		h.logger().InfoContext(r.Context(), "login failed", "user", creds.Username, "code", apperrors.GetCode(err))
		msg, code := "Sign-in failed. Try again.", http.StatusUnauthorized
		if apperrors.IsLogin(err) {
			msg = "Invalid username or password."
		}
		h.Renderer.Render(w, r, "login", code, h.loginPage(r, creds.Username, msg))
		return
	}

	redirect(w, r, h.postLoginTarget())
}

func (h *AuthHandlers) postLoginTarget() string {
	if h.Location != nil {
		if p := h.Location.Path(); p != "" && p != h.LoginPath {
			return p
		}
	}
	return h.LandingPath
}

func (h *AuthHandlers) loginPage(r *http.Request, username, msg string) PageData {
	return PageData{
		Title:     "Sign in",
		CSRFToken: CSRFTokenFromContext(r.Context()),
		LoginPath: h.LoginPath,
		Username:  username,
		Error:     msg,
	}
}

// Logout ends the session. Remote failures are absorbed by the controller.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.Session.Logout(r.Context())

	if !IsBrowserRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": h.LoginPath,
		})
		return
	}
	redirect(w, r, h.LoginPath)
}

// statusResponse is the JSON view of the SessionState.
type statusResponse struct {
	Authenticated bool             `json:"authenticated"`
	Loading       bool             `json:"loading"`
	Initialized   bool             `json:"initialized"`
	Phase         domainauth.Phase `json:"phase"`
	User          *statusUser      `json:"user,omitempty"`
}

type statusUser struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Status returns the current SessionState.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, newStatusResponse(h.Session.State()))
}

// Refresh re-checks the stored token and returns the resulting state.
// POST /auth/refresh.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.Session.Refresh(r.Context())
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		WriteError(w, ErrorParams{Code: http.StatusGatewayTimeout, ErrCode: "refresh_interrupted", Err: err})
		return
	}
	WriteJSON(w, http.StatusOK, newStatusResponse(h.Session.State()))
}

func newStatusResponse(st domainauth.SessionState) statusResponse {
	resp := statusResponse{
		Authenticated: st.IsAuthenticated,
		Loading:       st.IsLoading,
		Initialized:   st.IsInitialized,
		Phase:         st.Phase(),
	}
	if st.IsAuthenticated && st.Identity != nil {
		u := &statusUser{ID: st.Identity.ID, Name: st.Identity.Name, Email: st.Identity.Email}
		if !st.Identity.CreatedAt.IsZero() {
			created := st.Identity.CreatedAt
			u.CreatedAt = &created
		}
		resp.User = u
	}
	return resp
}
