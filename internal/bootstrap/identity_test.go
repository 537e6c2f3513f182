package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/config"
	"github.com/target/mmk-console/internal/adapters/devauth"
	"github.com/target/mmk-console/internal/adapters/restapi"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

func TestBuildIdentityClient(t *testing.T) {
	t.Run("rest", func(t *testing.T) {
		auth := config.AuthConfig{Mode: config.AuthModeREST, REST: config.RESTConfig{BaseURL: "http://admin.internal:8080"}}
		auth.Sanitize()
		client, err := BuildIdentityClient(IdentityDeps{Auth: auth})
		require.NoError(t, err)
		assert.IsType(t, &restapi.Client{}, client)
	})

	t.Run("rest rejects a bad expression", func(t *testing.T) {
		auth := config.AuthConfig{Mode: config.AuthModeREST, REST: config.RESTConfig{
			BaseURL:   "http://admin.internal:8080",
			TokenExpr: "data.[",
		}}
		_, err := BuildIdentityClient(IdentityDeps{Auth: auth})
		assert.ErrorContains(t, err, "rest identity client")
	})

	t.Run("oidc requires a client secret", func(t *testing.T) {
		auth := config.AuthConfig{Mode: config.AuthModeOIDC, OAuth: config.OAuthConfig{
			ClientID:     "merrymaker",
			DiscoveryURL: "https://idp.example.com/.well-known/openid-configuration",
		}}
		_, err := BuildIdentityClient(IdentityDeps{Auth: auth})
		assert.ErrorContains(t, err, "client secret is required")
	})

	t.Run("mock", func(t *testing.T) {
		auth := config.AuthConfig{Mode: config.AuthModeMock, DevAuth: config.DevAuthConfig{
			UserID:   "dev-user",
			Email:    "dev@example.com",
			Password: "dev",
		}}
		client, err := BuildIdentityClient(IdentityDeps{Auth: auth})
		require.NoError(t, err)
		require.IsType(t, &devauth.Provider{}, client)

		res, err := client.Login(context.Background(), domainauth.Credentials{Username: "dev-user", Password: "dev"})
		require.NoError(t, err)
		id, err := client.FetchCurrentIdentity(context.Background(), res.Token)
		require.NoError(t, err)
		assert.Equal(t, "dev-user", id.ID)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := BuildIdentityClient(IdentityDeps{Auth: config.AuthConfig{Mode: "saml"}})
		assert.ErrorContains(t, err, "unsupported AUTH_MODE")
	})
}
