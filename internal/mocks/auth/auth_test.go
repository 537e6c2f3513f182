package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
)

func TestFakeIdentityClient_LoginAndFetch(t *testing.T) {
	ctx := context.Background()
	ada := domainauth.Identity{ID: "1", Name: "Ada"}
	fake := NewFakeIdentityClient().AddUser("ada", "pw", "tok-1", ada)

	res, err := fake.Login(ctx, domainauth.Credentials{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)

	_, err = fake.Login(ctx, domainauth.Credentials{Username: "ada", Password: "bad"})
	require.Error(t, err)
	assert.True(t, apperrors.IsLogin(err))

	id, err := fake.FetchCurrentIdentity(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, ada, id)
	assert.Equal(t, 1, fake.FetchCalls())
	assert.Equal(t, "tok-1", fake.LastFetchedToken())

	fake.RevokeToken("tok-1")
	_, err = fake.FetchCurrentIdentity(ctx, "tok-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsIdentityFetch(err))
	assert.Equal(t, 2, fake.FetchCalls())
}

func TestFakeIdentityClient_Overrides(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	fake := NewFakeIdentityClient()
	fake.FetchFunc = func(context.Context, string) (domainauth.Identity, error) { return domainauth.Identity{}, boom }
	fake.LogoutFunc = func(context.Context, string) error { return boom }

	_, err := fake.FetchCurrentIdentity(ctx, "x")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, fake.Logout(ctx, "x"), boom)
	assert.Equal(t, 1, fake.FetchCalls())
	assert.Equal(t, 1, fake.LogoutCalls())
}

func TestRecordingNavigator(t *testing.T) {
	var nav RecordingNavigator
	assert.Empty(t, nav.Last())

	nav.Navigate(context.Background(), "/login")
	nav.Navigate(context.Background(), "/dashboard")
	assert.Equal(t, []string{"/login", "/dashboard"}, nav.Paths())
	assert.Equal(t, "/dashboard", nav.Last())
}
