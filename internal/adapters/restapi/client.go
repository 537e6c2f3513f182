// Package restapi is the IdentityClient for the admin REST backend.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
	"golang.org/x/net/publicsuffix"
)

// Default endpoint paths and extraction expressions.
const (
	DefaultLoginPath    = "/api/auth/login"
	DefaultMePath       = "/api/auth/me"
	DefaultLogoutPath   = "/api/auth/logout"
	DefaultTokenExpr    = "data.token || token || access_token"
	DefaultIdentityExpr = "data.user || data || @"
	DefaultLoginIDExpr  = "data.user || user"

	maxErrorBody = 512
	// maxResponseBody bounds how much of a backend response is read.
	maxResponseBody = 4 << 20
)

var _ ports.IdentityClient = (*Client)(nil)

// Config holds configuration for the REST identity client.
type Config struct {
	BaseURL    string
	LoginPath  string
	MePath     string
	LogoutPath string

	// TokenExpr locates the bearer token in the login response (JMESPath).
	TokenExpr string
	// IdentityExpr locates the principal in the identity response (JMESPath).
	IdentityExpr string
	// LoginIdentityExpr locates an optional principal in the login response (JMESPath).
	LoginIdentityExpr string

	// Tokens supplies the bearer token for requests that do not carry one explicitly.
	Tokens ports.TokenStore

	Timeout    time.Duration
	HTTPClient *http.Client // Optional, defaults to a client with a cookie jar
	Logger     *slog.Logger
}

// Client implements ports.IdentityClient against the admin REST API.
type Client struct {
	baseURL    *url.URL
	loginPath  string
	mePath     string
	logoutPath string

	tokenExpr         string
	identityExpr      string
	loginIdentityExpr string

	tokens     ports.TokenStore
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL:           base,
		loginPath:         firstNonEmpty(cfg.LoginPath, DefaultLoginPath),
		mePath:            firstNonEmpty(cfg.MePath, DefaultMePath),
		logoutPath:        firstNonEmpty(cfg.LogoutPath, DefaultLogoutPath),
		tokenExpr:         firstNonEmpty(cfg.TokenExpr, DefaultTokenExpr),
		identityExpr:      firstNonEmpty(cfg.IdentityExpr, DefaultIdentityExpr),
		loginIdentityExpr: firstNonEmpty(cfg.LoginIdentityExpr, DefaultLoginIDExpr),
		tokens:            cfg.Tokens,
		httpClient:        cfg.HTTPClient,
		logger:            cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	for _, expr := range []string{c.tokenExpr, c.identityExpr, c.loginIdentityExpr} {
		if _, cerr := jmespath.Compile(expr); cerr != nil {
			return nil, fmt.Errorf("invalid JMESPath expression %q: %w", expr, cerr)
		}
	}

	if c.httpClient == nil {
		jar, jerr := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if jerr != nil {
			return nil, fmt.Errorf("create cookie jar: %w", jerr)
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	return c, nil
}

// Login posts credentials and extracts the bearer token from the response.
func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	if creds.Username == "" || creds.Password == "" {
		return domainauth.LoginResult{}, apperrors.Login(apperrors.Validation("username and password are required"))
	}

	resp, err := c.do(ctx, request{
		Method:    http.MethodPost,
		Path:      c.loginPath,
		Body:      map[string]string{"username": creds.Username, "password": creds.Password},
		Anonymous: true,
	})
	if err != nil {
		return domainauth.LoginResult{}, apperrors.Login(err)
	}
	if !resp.ok() {
		return domainauth.LoginResult{}, apperrors.LoginStatus(resp.Status, resp.snippet())
	}

	doc, err := resp.document()
	if err != nil {
		return domainauth.LoginResult{}, apperrors.Login(err)
	}
	raw, err := jmespath.Search(c.tokenExpr, doc)
	if err != nil {
		return domainauth.LoginResult{}, apperrors.Login(fmt.Errorf("extract token: %w", err))
	}
	token, ok := raw.(string)
	if !ok || token == "" {
		return domainauth.LoginResult{}, apperrors.Login(errors.New("login response carries no token"))
	}

	result := domainauth.LoginResult{Token: token}
	if v, serr := jmespath.Search(c.loginIdentityExpr, doc); serr == nil && v != nil {
		if id, merr := identityFromValue(v); merr == nil {
			result.Identity = &id
		}
	}
	return result, nil
}

// FetchCurrentIdentity calls the identity endpoint with the given bearer token.
func (c *Client) FetchCurrentIdentity(ctx context.Context, token string) (domainauth.Identity, error) {
	resp, err := c.do(ctx, request{Method: http.MethodGet, Path: c.mePath, Token: token})
	if err != nil {
		return domainauth.Identity{}, apperrors.IdentityFetch(err)
	}
	if !resp.ok() {
		return domainauth.Identity{}, apperrors.IdentityFetchStatus(resp.Status, resp.snippet())
	}

	doc, err := resp.document()
	if err != nil {
		return domainauth.Identity{}, apperrors.IdentityFetch(err)
	}
	v, err := jmespath.Search(c.identityExpr, doc)
	if err != nil {
		return domainauth.Identity{}, apperrors.IdentityFetch(fmt.Errorf("extract identity: %w", err))
	}
	id, err := identityFromValue(v)
	if err != nil {
		return domainauth.Identity{}, apperrors.IdentityFetch(err)
	}
	return id, nil
}

// Logout notifies the backend that the token is no longer in use.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, request{Method: http.MethodPost, Path: c.logoutPath, Token: token})
	if err != nil {
		return apperrors.Logout(err)
	}
	if !resp.ok() {
		return apperrors.Logout(fmt.Errorf("unexpected status %d: %s", resp.Status, resp.snippet()))
	}
	return nil
}

// GetJSON issues an authenticated GET against the backend and decodes the body into out.
// The bearer token is taken from the token store.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	if !resp.ok() {
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.Status, resp.snippet())
	}
	if out == nil {
		return nil
	}
	if err = json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// request groups parameters for the shared request helper.
type request struct {
	Method string
	Path   string
	Body   any
	// Token overrides the stored token when set.
	Token string
	// Anonymous suppresses the Authorization header.
	Anonymous bool
}

type response struct {
	Status int
	Body   []byte
}

func (r *response) ok() bool { return r.Status >= 200 && r.Status < 300 }

func (r *response) snippet() string {
	b := bytes.TrimSpace(r.Body)
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}

// document decodes the body for JMESPath. Numbers stay json.Number so large ids keep their digits.
func (r *response) document() (any, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return doc, nil
}

// do is the shared request helper. It attaches the bearer token (explicit or stored),
// a request ID, and JSON headers, and reads the response body up to maxResponseBody.
func (c *Client) do(ctx context.Context, req request) (*response, error) {
	endpoint := c.baseURL.JoinPath(req.Path)

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if !req.Anonymous {
		token, terr := c.bearer(ctx, req.Token)
		if terr != nil {
			return nil, terr
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "close response body", "error", cerr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(data) > maxResponseBody {
		return nil, fmt.Errorf("%s %s: response body exceeds %d bytes", req.Method, req.Path, maxResponseBody)
	}

	c.logger.DebugContext(ctx, "backend request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", httpReq.Header.Get("X-Request-ID")),
	)

	return &response{Status: resp.StatusCode, Body: data}, nil
}

func (c *Client) bearer(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.tokens == nil {
		return "", nil
	}
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("read stored token: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
