// Package auth contains domain-level types for the console session.
// It is pure and free of framework/adapter concerns.
package auth

import "time"

// Identity represents the authenticated principal returned by the identity backend.
// Adapters map provider-specific payloads into this shape.
type Identity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials carries what the operator typed into the login form.
type Credentials struct {
	Username string
	Password string
}

// LoginResult is returned by a successful authenticate-with-credentials call.
// Identity is optional; backends that return the principal alongside the token set it.
type LoginResult struct {
	Token    string
	Identity *Identity
}

// Claims holds the self-asserted claims decoded from a bearer token payload.
// Nothing here is verified; it only drives UX-level expiry checks.
type Claims struct {
	Subject   string
	ExpiresAt *time.Time
	IssuedAt  *time.Time
}

// Phase is a derived label for SessionState used in logs and diagnostics.
type Phase string

const (
	PhaseUninitialized   Phase = "uninitialized"
	PhaseChecking        Phase = "checking"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseUnauthenticated Phase = "unauthenticated"
)

// SessionState is the single structured value owned by the session controller.
// IsAuthenticated implies Identity != nil.
type SessionState struct {
	Identity        *Identity `json:"identity,omitempty"`
	IsAuthenticated bool      `json:"is_authenticated"`
	IsLoading       bool      `json:"is_loading"`
	IsInitialized   bool      `json:"is_initialized"`
}

// Phase derives the state machine label from the orthogonal flags.
func (s SessionState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseChecking
	case !s.IsInitialized:
		return PhaseUninitialized
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Clone returns a copy that shares no memory with s.
func (s SessionState) Clone() SessionState {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}
