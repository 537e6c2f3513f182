// Package devauth provides a simple, config-driven IdentityClient for local development.
// It mints and verifies its own HS256 tokens so the console runs without a backend.
package devauth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

var _ ports.IdentityClient = (*Provider)(nil)

// Config controls the dev auth provider behavior.
// UserID and Email are required. An empty Password accepts any password.
type Config struct {
	UserID          string
	Name            string
	Email           string
	Password        string
	SigningKey      []byte        // random per process when empty
	SessionDuration time.Duration // default 8h when zero
	Now             func() time.Time
}

type devClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider implements ports.IdentityClient for local development.
type Provider struct {
	identity        domainauth.Identity
	password        string
	key             []byte
	sessionDuration time.Duration
	now             func() time.Time

	mu      sync.Mutex
	revoked map[string]struct{}
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("dev auth: generate signing key: %w", err)
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		identity: domainauth.Identity{
			ID:        cfg.UserID,
			Name:      cfg.Name,
			Email:     cfg.Email,
			CreatedAt: now().UTC().Truncate(time.Second),
		},
		password:        cfg.Password,
		key:             key,
		sessionDuration: dur,
		now:             now,
		revoked:         make(map[string]struct{}),
	}, nil
}

// Login checks the configured user and returns a freshly minted token.
func (p *Provider) Login(_ context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	if creds.Username != p.identity.ID {
		return domainauth.LoginResult{}, apperrors.Login(fmt.Errorf("dev auth: unknown user %q", creds.Username))
	}
	if p.password != "" && creds.Password != p.password {
		return domainauth.LoginResult{}, apperrors.Login(errors.New("dev auth: invalid password"))
	}

	token, err := p.mint()
	if err != nil {
		return domainauth.LoginResult{}, apperrors.Login(err)
	}
	id := p.identity
	return domainauth.LoginResult{Token: token, Identity: &id}, nil
}

// FetchCurrentIdentity verifies the signature, expiry and revocation status of token.
func (p *Provider) FetchCurrentIdentity(_ context.Context, token string) (domainauth.Identity, error) {
	claims, err := p.parse(token)
	if err != nil {
		return domainauth.Identity{}, apperrors.IdentityFetch(err)
	}
	if claims.Subject != p.identity.ID {
		return domainauth.Identity{}, apperrors.IdentityFetch(fmt.Errorf("dev auth: unknown subject %q", claims.Subject))
	}
	p.mu.Lock()
	_, gone := p.revoked[claims.ID]
	p.mu.Unlock()
	if gone {
		return domainauth.Identity{}, apperrors.IdentityFetch(errors.New("dev auth: token revoked"))
	}
	return p.identity, nil
}

// Logout revokes the token. Unparseable tokens are ignored.
func (p *Provider) Logout(_ context.Context, token string) error {
	claims, err := p.parse(token)
	if err != nil {
		return nil //nolint:nilerr // nothing to revoke
	}
	p.mu.Lock()
	p.revoked[claims.ID] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *Provider) mint() (string, error) {
	now := p.now()
	claims := devClaims{
		Name:  p.identity.Name,
		Email: p.identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.sessionDuration)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("dev auth: sign token: %w", err)
	}
	return s, nil
}

func (p *Provider) parse(token string) (*devClaims, error) {
	var claims devClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("dev auth: %w", err)
	}
	return &claims, nil
}
