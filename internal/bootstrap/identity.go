package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/devauth"
	"github.com/target/mmk-console/internal/adapters/oidc"
	"github.com/target/mmk-console/internal/adapters/restapi"
	"github.com/target/mmk-console/internal/ports"
)

// IdentityDeps contains what BuildIdentityClient needs.
type IdentityDeps struct {
	Auth config.AuthConfig
	// Tokens lets the REST client attach the stored bearer token to plain API calls.
	Tokens     ports.TokenStore
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// BuildIdentityClient selects the identity backend for AUTH_MODE.
//
//nolint:ireturn // the backend is chosen at runtime.
func BuildIdentityClient(deps IdentityDeps) (ports.IdentityClient, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch deps.Auth.Mode {
	case config.AuthModeREST, "":
		rc := deps.Auth.REST
		client, err := restapi.NewClient(restapi.Config{
			BaseURL:           rc.BaseURL,
			LoginPath:         rc.LoginPath,
			MePath:            rc.MePath,
			LogoutPath:        rc.LogoutPath,
			TokenExpr:         rc.TokenExpr,
			IdentityExpr:      rc.IdentityExpr,
			LoginIdentityExpr: rc.LoginIdentityExpr,
			Tokens:            deps.Tokens,
			Timeout:           rc.Timeout,
			HTTPClient:        deps.HTTPClient,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("rest identity client: %w", err)
		}
		logger.Info("using REST identity backend", "base_url", rc.BaseURL)
		return client, nil

	case config.AuthModeOIDC:
		oc := deps.Auth.OAuth
		provider, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scope:        oc.Scope,
			DiscoveryURL: oc.DiscoveryURL,
			LogoutURL:    oc.LogoutURL,
			HTTPClient:   deps.HTTPClient,
		})
		if err != nil {
			return nil, fmt.Errorf("oidc identity client: %w", err)
		}
		logger.Info("using OIDC identity backend", "discovery_url", oc.DiscoveryURL)
		return provider, nil

	case config.AuthModeMock:
		dc := deps.Auth.DevAuth
		provider, err := devauth.NewProvider(devauth.Config{
			UserID:          dc.UserID,
			Name:            dc.Name,
			Email:           dc.Email,
			Password:        dc.Password,
			SigningKey:      []byte(dc.SigningKey),
			SessionDuration: dc.SessionDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("dev identity client: %w", err)
		}
		logger.Warn("using development identity backend; do not use in production", "user", dc.UserID)
		if dc.SigningKey == "" {
			logger.Warn("DEV_AUTH_SIGNING_KEY is empty; stored sessions end when the process exits")
		}
		return provider, nil
	}
	return nil, errors.New("unsupported AUTH_MODE " + string(deps.Auth.Mode))
}
