package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/adapters/jwtcodec"
	"github.com/target/mmk-console/internal/adapters/localstore"
	"github.com/target/mmk-console/internal/console"
	fakes "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/service"
	"github.com/target/mmk-console/internal/testutil"
)

const testCSRF = "test-csrf-token"

// consoleHarness is a fully wired console backed by in-memory stores.
type consoleHarness struct {
	tokens   *localstore.MemoryTokenStore
	intents  *localstore.MemoryIntentStore
	client   *fakes.FakeIdentityClient
	location *console.Location
	session  *service.SessionController
	guard    *console.Guard
	handler  http.Handler
	token    string
}

// newConsoleHarness starts a session; when signedIn is true a valid token is stored first.
func newConsoleHarness(t *testing.T, signedIn bool) *consoleHarness {
	t.Helper()
	ctx := context.Background()

	h := &consoleHarness{
		tokens:   localstore.NewMemoryTokenStore(),
		intents:  localstore.NewMemoryIntentStore(),
		client:   fakes.NewFakeIdentityClient(),
		location: console.NewLocation("/"),
		token:    testutil.NewToken().ExpiresIn(time.Hour).Build(t),
	}
	h.client.AddUser("operator", "hunter2", h.token, testutil.NewIdentity())
	if signedIn {
		require.NoError(t, h.tokens.Set(ctx, h.token))
	}

	sess, err := service.NewSessionController(ctx, service.SessionControllerOptions{
		Tokens:      h.tokens,
		Intents:     h.intents,
		Codec:       jwtcodec.New(),
		Identity:    h.client,
		Navigator:   h.location,
		LoginPath:   "/login",
		LandingPath: "/dashboard",
	})
	require.NoError(t, err)
	select {
	case <-sess.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session never became ready")
	}
	h.session = sess

	h.guard, err = console.NewGuard(console.GuardOptions{
		Session:     sess,
		Intents:     h.intents,
		Navigator:   h.location,
		LoginPath:   "/login",
		Interactive: true,
	})
	require.NoError(t, err)

	h.handler, err = NewRouter(RouterServices{
		Session:     sess,
		Guard:       h.guard,
		Location:    h.location,
		LandingPath: "/dashboard",
	})
	require.NoError(t, err)
	return h
}

func (h *consoleHarness) get(path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// postForm submits form with a matching CSRF cookie and field.
func (h *consoleHarness) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(DefaultCSRFCookieName, testCSRF)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}
