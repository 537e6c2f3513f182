// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.
package auth

import (
	"context"
	"fmt"
	"sync"

	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityClient = (*FakeIdentityClient)(nil)
	_ ports.Navigator      = (*RecordingNavigator)(nil)
)

// FakeIdentityClient simulates the identity backend with a fixed user table.
// The Func fields override the default behavior when set.
type FakeIdentityClient struct {
	LoginFunc  func(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error)
	FetchFunc  func(ctx context.Context, token string) (domainauth.Identity, error)
	LogoutFunc func(ctx context.Context, token string) error

	mu sync.Mutex
	// passwords maps username to password; tokens maps issued token to identity.
	passwords map[string]string
	issued    map[string]string
	users     map[string]domainauth.Identity
	tokens    map[string]domainauth.Identity

	fetchCalls  int
	logoutCalls int
	lastFetch   string
}

// NewFakeIdentityClient creates an empty FakeIdentityClient.
func NewFakeIdentityClient() *FakeIdentityClient {
	return &FakeIdentityClient{
		passwords: make(map[string]string),
		issued:    make(map[string]string),
		users:     make(map[string]domainauth.Identity),
		tokens:    make(map[string]domainauth.Identity),
	}
}

// AddUser registers a user that can log in with password and receives token.
func (f *FakeIdentityClient) AddUser(username, password, token string, id domainauth.Identity) *FakeIdentityClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[username] = password
	f.issued[username] = token
	f.users[username] = id
	f.tokens[token] = id
	return f
}

// AcceptToken makes FetchCurrentIdentity resolve token to id.
func (f *FakeIdentityClient) AcceptToken(token string, id domainauth.Identity) *FakeIdentityClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = id
	return f
}

// RevokeToken makes FetchCurrentIdentity reject token.
func (f *FakeIdentityClient) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

func (f *FakeIdentityClient) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, creds)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pw, ok := f.passwords[creds.Username]
	if !ok || pw != creds.Password {
		return domainauth.LoginResult{}, apperrors.LoginStatus(401, "invalid credentials")
	}
	return domainauth.LoginResult{Token: f.issued[creds.Username]}, nil
}

func (f *FakeIdentityClient) FetchCurrentIdentity(ctx context.Context, token string) (domainauth.Identity, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.lastFetch = token
	fn := f.FetchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return domainauth.Identity{}, apperrors.IdentityFetchStatus(401, fmt.Sprintf("unknown token %q", token))
	}
	return id, nil
}

func (f *FakeIdentityClient) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	f.logoutCalls++
	fn := f.LogoutFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, token)
	}
	return nil
}

// FetchCalls returns how many identity round trips were made.
func (f *FakeIdentityClient) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// LastFetchedToken returns the token presented on the latest identity call.
func (f *FakeIdentityClient) LastFetchedToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFetch
}

// LogoutCalls returns how many remote logouts were attempted.
func (f *FakeIdentityClient) LogoutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

// RecordingNavigator records every navigation in order.
type RecordingNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *RecordingNavigator) Navigate(_ context.Context, path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

// Paths returns a copy of the recorded navigations.
func (n *RecordingNavigator) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

// Last returns the latest navigation, or "" when none happened.
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.paths) == 0 {
		return ""
	}
	return n.paths[len(n.paths)-1]
}
