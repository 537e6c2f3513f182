package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the identity backend.
type AuthMode string

const (
	// AuthModeREST talks to the admin REST API.
	AuthModeREST AuthMode = "rest"
	// AuthModeOIDC uses an OIDC issuer with the password grant.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses a local development identity (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "rest", "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: rest, oidc, mock)", v)
	}
}

// RESTConfig configures the admin REST identity backend.
type RESTConfig struct {
	BaseURL    string        `env:"BASE_URL"    envDefault:"http://localhost:8080"`
	LoginPath  string        `env:"LOGIN_PATH"  envDefault:"/api/auth/login"`
	MePath     string        `env:"ME_PATH"     envDefault:"/api/auth/me"`
	LogoutPath string        `env:"LOGOUT_PATH" envDefault:"/api/auth/logout"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"15s"`

	// JMESPath expressions locating the token and principal in response bodies.
	TokenExpr         string `env:"TOKEN_EXPR"`
	IdentityExpr      string `env:"IDENTITY_EXPR"`
	LoginIdentityExpr string `env:"LOGIN_IDENTITY_EXPR"`
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"merrymaker"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	LogoutURL    string `env:"LOGOUT_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	Name            string        `env:"NAME"             envDefault:"Dev User"`
	Email           string        `env:"EMAIL"            envDefault:"dev@example.com"`
	Password        string        `env:"PASSWORD"         envDefault:"dev"`
	SigningKey      string        `env:"SIGNING_KEY"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"rest"`

	REST    RESTConfig    `envPrefix:"API_"`
	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values that are commonly pasted with stray whitespace.
func (a *AuthConfig) Sanitize() {
	a.REST.BaseURL = strings.TrimRight(strings.TrimSpace(a.REST.BaseURL), "/")
	if a.REST.Timeout <= 0 {
		a.REST.Timeout = 15 * time.Second
	}
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.OAuth.LogoutURL = strings.TrimSpace(a.OAuth.LogoutURL)
	if a.DevAuth.SessionDuration <= 0 {
		a.DevAuth.SessionDuration = 8 * time.Hour
	}
}

// Validate checks the settings the selected mode needs.
func (a *AuthConfig) Validate(isDev bool) error {
	switch a.Mode {
	case AuthModeREST:
		if a.REST.BaseURL == "" {
			return errors.New("API_BASE_URL is required when AUTH_MODE=rest")
		}
	case AuthModeOIDC:
		if a.OAuth.DiscoveryURL == "" || a.OAuth.ClientID == "" {
			return errors.New("OAUTH_DISCOVERY_URL and OAUTH_CLIENT_ID are required when AUTH_MODE=oidc")
		}
	case AuthModeMock:
		if !isDev {
			return errors.New("AUTH_MODE=mock requires DEV=true")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", a.Mode)
	}
	return nil
}
