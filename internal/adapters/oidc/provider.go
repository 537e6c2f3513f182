// Package oidc provides an OIDC-backed IdentityClient for the console.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.IdentityClient = (*Provider)(nil)

// Provider implements ports.IdentityClient with the OAuth2 password grant
// and resolves identities from the ID token or the UserInfo endpoint.
type Provider struct {
	config     *oauth2.Config
	logoutURL  string
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	LogoutURL    string
	HTTPClient   *http.Client // Optional, defaults to a client with a 30s timeout
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider. Discovery happens once, here.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		logoutURL:  config.LogoutURL,
		httpClient: httpClient,
	}

	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	scope := config.Scope
	if strings.TrimSpace(scope) == "" {
		scope = "openid profile email"
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       strings.Fields(scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// Login exchanges credentials for tokens using the resource owner password grant.
// The ID token is preferred as the session token because it always carries exp.
func (p *Provider) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	if creds.Username == "" || creds.Password == "" {
		return domainauth.LoginResult{}, apperrors.Login(apperrors.Validation("username and password are required"))
	}

	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), creds.Username, creds.Password)
	if err != nil {
		return domainauth.LoginResult{}, withStatus(apperrors.Login(err), err)
	}

	if raw, idErr := getIDTokenFromToken(tok); idErr == nil {
		return domainauth.LoginResult{Token: raw}, nil
	}
	if tok.AccessToken == "" {
		return domainauth.LoginResult{}, apperrors.Login(errors.New("token response carries no token"))
	}
	return domainauth.LoginResult{Token: tok.AccessToken}, nil
}

// FetchCurrentIdentity verifies token as an ID token when possible and
// otherwise presents it to the UserInfo endpoint as an access token.
func (p *Provider) FetchCurrentIdentity(ctx context.Context, token string) (domainauth.Identity, error) {
	if token == "" {
		return domainauth.Identity{}, apperrors.IdentityFetch(apperrors.MissingToken())
	}
	ctx = p.clientContext(ctx)

	var f idFields
	if idTok, err := p.verifier.Verify(ctx, token); err == nil {
		var claims idTokenADClaims
		if claimsErr := idTok.Claims(&claims); claimsErr != nil {
			return domainauth.Identity{}, apperrors.IdentityFetch(fmt.Errorf("parse id_token claims: %w", claimsErr))
		}
		f = mapIDTokenClaims(claims)
		// UserInfo does not accept ID tokens, so the claims are all there is.
		if f.userID == "" {
			return domainauth.Identity{}, apperrors.IdentityFetch(errors.New("id_token has no subject"))
		}
		return f.identity(), nil
	}

	ui, err := p.getUserInfo(ctx, token)
	if err != nil {
		return domainauth.Identity{}, withStatus(apperrors.IdentityFetch(err), err)
	}
	fillFromUserInfoClaims(&f, *ui)
	if f.userID == "" {
		return domainauth.Identity{}, apperrors.IdentityFetch(errors.New("userinfo has no subject"))
	}
	return f.identity(), nil
}

// Logout posts the token to the configured end-session URL. Without one it is a no-op.
func (p *Provider) Logout(ctx context.Context, token string) error {
	if p.logoutURL == "" {
		return nil
	}
	form := url.Values{"token": {token}, "client_id": {p.config.ClientID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.logoutURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.Logout(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apperrors.Logout(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return apperrors.Logout(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}

// UserInfo represents the user information from the OIDC userinfo endpoint.
type UserInfo struct {
	Subject        string `json:"sub"`
	SamAccountName string `json:"samaccountname"`
	Name           string `json:"name"`
	FirstName      string `json:"firstname"`
	LastName       string `json:"lastname"`
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	Mail           string `json:"mail"`
	Email          string `json:"email"`
}

func (p *Provider) getUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	var userInfo UserInfo
	if claimsErr := ui.Claims(&userInfo); claimsErr != nil {
		return nil, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return &userInfo, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

type idFields struct {
	userID string
	email  string
	name   string
	issued time.Time
}

func (f idFields) identity() domainauth.Identity {
	return domainauth.Identity{ID: f.userID, Name: f.name, Email: f.email, CreatedAt: f.issued}
}

// idTokenADClaims represents a superset of OIDC and AD/ADFS claim shapes.
type idTokenADClaims struct {
	Sub            string `json:"sub"`
	SamAccountName string `json:"samaccountname"`
	Name           string `json:"name"`
	FirstName      string `json:"firstname"`
	LastName       string `json:"lastname"`
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	Mail           string `json:"mail"`
	Email          string `json:"email"`
	IssuedAt       int64  `json:"iat"`
}

// mapIDTokenClaims maps raw id token claims into idFields using precedence rules.
func mapIDTokenClaims(c idTokenADClaims) idFields {
	f := idFields{
		userID: firstNonEmpty(c.SamAccountName, c.Sub),
		email:  firstNonEmpty(c.Mail, c.Email),
		name: firstNonEmpty(
			c.Name,
			joinName(c.FirstName, c.LastName),
			joinName(c.GivenName, c.FamilyName),
		),
	}
	if c.IssuedAt > 0 {
		f.issued = time.Unix(c.IssuedAt, 0).UTC()
	}
	return f
}

// fillFromUserInfoClaims fills missing fields from a UserInfo payload.
func fillFromUserInfoClaims(f *idFields, ui UserInfo) {
	if f.userID == "" {
		f.userID = firstNonEmpty(ui.SamAccountName, ui.Subject)
	}
	if f.email == "" {
		f.email = firstNonEmpty(ui.Mail, ui.Email)
	}
	if f.name == "" {
		f.name = firstNonEmpty(
			ui.Name,
			joinName(ui.FirstName, ui.LastName),
			joinName(ui.GivenName, ui.FamilyName),
		)
	}
}

func joinName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}

// withStatus copies the HTTP status from an oauth2 retrieve error onto appErr.
func withStatus(appErr *apperrors.AppError, cause error) *apperrors.AppError {
	var rerr *oauth2.RetrieveError
	if errors.As(cause, &rerr) && rerr.Response != nil {
		appErr.Status = rerr.Response.StatusCode
	}
	return appErr
}
