package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-console/internal/adapters/jwtcodec"
	"github.com/target/mmk-console/internal/adapters/localstore"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
	apperrors "github.com/target/mmk-console/internal/errors"
	"github.com/target/mmk-console/internal/mocks"
	fakes "github.com/target/mmk-console/internal/mocks/auth"
	"github.com/target/mmk-console/internal/testutil"
	"go.uber.org/mock/gomock"
)

const (
	testLoginPath   = "/login"
	testLandingPath = "/dashboard"
)

// sessionHarness wires a controller to in-memory stores and fakes.
type sessionHarness struct {
	tokens  *localstore.MemoryTokenStore
	intents *localstore.MemoryIntentStore
	client  *fakes.FakeIdentityClient
	nav     *fakes.RecordingNavigator
	ctrl    *SessionController
}

func newHarness(t *testing.T, setup func(h *sessionHarness)) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		tokens:  localstore.NewMemoryTokenStore(),
		intents: localstore.NewMemoryIntentStore(),
		client:  fakes.NewFakeIdentityClient(),
		nav:     &fakes.RecordingNavigator{},
	}
	if setup != nil {
		setup(h)
	}
	ctrl, err := NewSessionController(context.Background(), SessionControllerOptions{
		Tokens:      h.tokens,
		Intents:     h.intents,
		Codec:       jwtcodec.New(),
		Identity:    h.client,
		Navigator:   h.nav,
		LoginPath:   testLoginPath,
		LandingPath: testLandingPath,
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	waitReady(t, ctrl)
	return h
}

func waitReady(t *testing.T, c *SessionController) {
	t.Helper()
	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("session never became ready")
	}
}

func validToken(t *testing.T) string {
	t.Helper()
	return testutil.NewToken().ExpiresIn(time.Hour).Build(t)
}

func TestNewSessionController_Validation(t *testing.T) {
	valid := SessionControllerOptions{
		Tokens:      localstore.NewMemoryTokenStore(),
		Intents:     localstore.NewMemoryIntentStore(),
		Codec:       jwtcodec.New(),
		Identity:    fakes.NewFakeIdentityClient(),
		Navigator:   &fakes.RecordingNavigator{},
		LoginPath:   testLoginPath,
		LandingPath: testLandingPath,
	}

	tests := []struct {
		name   string
		mutate func(o *SessionControllerOptions)
	}{
		{name: "tokens", mutate: func(o *SessionControllerOptions) { o.Tokens = nil }},
		{name: "intents", mutate: func(o *SessionControllerOptions) { o.Intents = nil }},
		{name: "codec", mutate: func(o *SessionControllerOptions) { o.Codec = nil }},
		{name: "identity", mutate: func(o *SessionControllerOptions) { o.Identity = nil }},
		{name: "navigator", mutate: func(o *SessionControllerOptions) { o.Navigator = nil }},
		{name: "paths", mutate: func(o *SessionControllerOptions) { o.LandingPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			_, err := NewSessionController(context.Background(), opts)
			require.Error(t, err)
		})
	}
}

func TestSession_NoStoredToken(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, domainauth.SessionState{IsInitialized: true}, h.ctrl.State())
	assert.Zero(t, h.client.FetchCalls(), "no network call without a token")
	assert.Equal(t, testLoginPath, h.nav.Last())

	err := h.ctrl.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenMissing(err))
	assert.Zero(t, h.client.FetchCalls())
	assert.Equal(t, domainauth.PhaseUnauthenticated, h.ctrl.State().Phase())
}

func TestSession_ValidTokenNavigatesToIntent(t *testing.T) {
	identity := domainauth.Identity{ID: "1", Name: "A", Email: "a@x.com"}
	var token string
	h := newHarness(t, func(h *sessionHarness) {
		token = validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		require.NoError(t, h.intents.Save(context.Background(), "/orders"))
		h.client.AcceptToken(token, identity)
	})

	st := h.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.True(t, st.IsInitialized)
	assert.False(t, st.IsLoading)
	require.NotNil(t, st.Identity)
	assert.Equal(t, identity, *st.Identity)
	assert.Equal(t, token, h.client.LastFetchedToken())
	assert.Equal(t, "/orders", h.nav.Last())

	_, ok, err := h.intents.Take(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "intent is consumed by the redirect")
}

func TestSession_ValidTokenWithoutIntentGoesToLanding(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})
	assert.Equal(t, testLandingPath, h.nav.Last())
}

func TestSession_IntentEqualToLoginIsIgnored(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		require.NoError(t, h.intents.Save(context.Background(), testLoginPath))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})
	assert.Equal(t, testLandingPath, h.nav.Last())
}

func TestSession_ExpiredOrMalformedTokenSkipsNetwork(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{name: "expired", token: func(t *testing.T) string {
			return testutil.NewToken().ExpiresIn(-time.Second).Build(t)
		}},
		{name: "no exp", token: func(t *testing.T) string { return testutil.NewToken().Build(t) }},
		{name: "not three segments", token: func(*testing.T) string { return "abc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(h *sessionHarness) {
				require.NoError(t, h.tokens.Set(context.Background(), tt.token(t)))
			})

			err := h.ctrl.Refresh(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.IsTokenExpired(err))
			assert.Zero(t, h.client.FetchCalls())
			assert.False(t, h.ctrl.State().IsAuthenticated)
			assert.Equal(t, testLoginPath, h.nav.Last())
		})
	}
}

func TestSession_IdentityFailureCollapsesToUnauthenticated(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		require.NoError(t, h.tokens.Set(context.Background(), validToken(t)))
		h.client.FetchFunc = func(context.Context, string) (domainauth.Identity, error) {
			return domainauth.Identity{}, errors.New("connection refused")
		}
	})

	err := h.ctrl.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsIdentityFetch(err), "raw transport errors are wrapped")
	assert.Equal(t, domainauth.SessionState{IsInitialized: true}, h.ctrl.State())
	assert.Equal(t, testLoginPath, h.nav.Last())
}

func TestSession_RefreshReplacesIdentity(t *testing.T) {
	token := ""
	h := newHarness(t, func(h *sessionHarness) {
		token = validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, domainauth.Identity{ID: "1", Name: "A"})
	})

	h.client.AcceptToken(token, domainauth.Identity{ID: "1", Name: "Renamed"})
	require.NoError(t, h.ctrl.Refresh(context.Background()))
	assert.Equal(t, "Renamed", h.ctrl.State().Identity.Name)

	h.client.RevokeToken(token)
	require.Error(t, h.ctrl.Refresh(context.Background()))
	assert.Nil(t, h.ctrl.State().Identity)
}

func TestSession_LogoutWhenRemoteFails(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
		h.client.LogoutFunc = func(context.Context, string) error { return errors.New("backend down") }
	})
	require.True(t, h.ctrl.State().IsAuthenticated)

	h.ctrl.Logout(context.Background())

	st := h.ctrl.State()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.Identity)
	assert.True(t, st.IsInitialized, "logout does not touch IsInitialized")
	assert.False(t, st.IsLoading)
	assert.Equal(t, 1, h.client.LogoutCalls())
	assert.Equal(t, testLoginPath, h.nav.Last())

	_, ok, err := h.tokens.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "token cleared regardless of remote failure")
}

func TestSession_LoginSuccess(t *testing.T) {
	token := ""
	h := newHarness(t, func(h *sessionHarness) {
		token = validToken(t)
		h.client.AddUser("ada", "pw", token, testutil.NewIdentity())
	})
	require.False(t, h.ctrl.State().IsAuthenticated)
	require.NoError(t, h.intents.Save(context.Background(), "/sites"))

	require.NoError(t, h.ctrl.Login(context.Background(), domainauth.Credentials{Username: "ada", Password: "pw"}))

	stored, ok, err := h.tokens.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, token, stored)

	st := h.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "1", st.Identity.ID)
	assert.Equal(t, "/sites", h.nav.Last())
}

func TestSession_LoginFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		h.client.AddUser("ada", "pw", "unused", testutil.NewIdentity())
	})
	before := h.ctrl.State()
	navs := len(h.nav.Paths())

	err := h.ctrl.Login(context.Background(), domainauth.Credentials{Username: "ada", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperrors.IsLogin(err))
	assert.Equal(t, before, h.ctrl.State())
	assert.Len(t, h.nav.Paths(), navs, "no navigation on login failure")

	_, ok, _ := h.tokens.Get(context.Background())
	assert.False(t, ok)
}

func TestSession_LoginWrapsForeignErrors(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		h.client.LoginFunc = func(context.Context, domainauth.Credentials) (domainauth.LoginResult, error) {
			return domainauth.LoginResult{}, nil
		}
	})
	err := h.ctrl.Login(context.Background(), domainauth.Credentials{Username: "u", Password: "p"})
	require.Error(t, err)
	assert.True(t, apperrors.IsLogin(err), "empty token is a login failure")
}

// blockingFetch makes FetchCurrentIdentity wait for release when the token matches.
type blockingFetch struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingFetch() *blockingFetch {
	return &blockingFetch{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingFetch) wait() {
	b.once.Do(func() { close(b.started) })
	<-b.release
}

func TestSession_ConcurrentRefreshSharesOneCheck(t *testing.T) {
	token := ""
	h := newHarness(t, func(h *sessionHarness) {
		token = validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})
	base := h.client.FetchCalls()

	block := newBlockingFetch()
	h.client.FetchFunc = func(context.Context, string) (domainauth.Identity, error) {
		block.wait()
		return testutil.NewIdentity(), nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = h.ctrl.Refresh(context.Background())
	}()
	<-block.started
	assert.True(t, h.ctrl.State().IsLoading)
	assert.Equal(t, domainauth.PhaseChecking, h.ctrl.State().Phase())

	for i := 1; i < len(errs); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.ctrl.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(block.release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, base+1, h.client.FetchCalls(), "overlapping refreshes share one identity call")
	st := h.ctrl.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
}

func TestSession_LogoutSupersedesInFlightRefresh(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})

	block := newBlockingFetch()
	h.client.FetchFunc = func(context.Context, string) (domainauth.Identity, error) {
		block.wait()
		return testutil.NewIdentity(), nil
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Refresh(context.Background()) }()
	<-block.started

	h.ctrl.Logout(context.Background())
	close(block.release)
	require.NoError(t, <-done)

	st := h.ctrl.State()
	assert.False(t, st.IsAuthenticated, "a refresh that started before logout must not resurrect the session")
	assert.Nil(t, st.Identity)
	assert.False(t, st.IsLoading)
	assert.True(t, st.IsInitialized)
	assert.Equal(t, testLoginPath, h.nav.Last(), "superseded refresh does not navigate")
}

func TestSession_LoginForcesFreshCheck(t *testing.T) {
	oldToken := testutil.NewToken().WithSubject("old").ExpiresIn(time.Hour).Build(t)
	newToken := testutil.NewToken().WithSubject("new").ExpiresIn(time.Hour).Build(t)
	h := newHarness(t, func(h *sessionHarness) {
		h.client.AddUser("ada", "pw", newToken, domainauth.Identity{ID: "new"})
	})

	block := newBlockingFetch()
	h.client.FetchFunc = func(_ context.Context, token string) (domainauth.Identity, error) {
		if token == oldToken {
			block.wait()
			return domainauth.Identity{ID: "old"}, nil
		}
		return domainauth.Identity{ID: "new"}, nil
	}
	require.NoError(t, h.tokens.Set(context.Background(), oldToken))

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Refresh(context.Background()) }()
	<-block.started

	require.NoError(t, h.ctrl.Login(context.Background(), domainauth.Credentials{Username: "ada", Password: "pw"}))
	assert.Equal(t, "new", h.ctrl.State().Identity.ID)
	assert.True(t, h.ctrl.State().IsLoading, "the superseded check is still in flight")

	close(block.release)
	require.NoError(t, <-done)

	st := h.ctrl.State()
	assert.Equal(t, "new", st.Identity.ID, "stale result is discarded")
	assert.False(t, st.IsLoading)
}

func TestSession_CallerCancellationDoesNotAbortCheck(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})
	h.ctrl.Logout(context.Background())
	token := validToken(t)
	require.NoError(t, h.tokens.Set(context.Background(), token))
	h.client.AcceptToken(token, testutil.NewIdentity())

	block := newBlockingFetch()
	h.client.FetchFunc = func(context.Context, string) (domainauth.Identity, error) {
		block.wait()
		return testutil.NewIdentity(), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Refresh(ctx) }()
	<-block.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(block.release)
	assert.Eventually(t, func() bool { return h.ctrl.State().IsAuthenticated }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_SubscribeObservesTransitions(t *testing.T) {
	h := newHarness(t, func(h *sessionHarness) {
		token := validToken(t)
		require.NoError(t, h.tokens.Set(context.Background(), token))
		h.client.AcceptToken(token, testutil.NewIdentity())
	})

	var (
		mu     sync.Mutex
		phases []domainauth.Phase
	)
	unsubscribe := h.ctrl.Subscribe(func(st domainauth.SessionState) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, st.Phase())
	})

	require.NoError(t, h.ctrl.Refresh(context.Background()))
	h.ctrl.Logout(context.Background())
	unsubscribe()
	unsubscribe()
	require.Error(t, h.ctrl.Refresh(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domainauth.Phase{
		domainauth.PhaseChecking,
		domainauth.PhaseAuthenticated,
		domainauth.PhaseUnauthenticated,
	}, phases)
}

func TestSession_WithGeneratedMocks(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenStore(mockCtrl)
	client := mocks.NewMockIdentityClient(mockCtrl)
	nav := mocks.NewMockNavigator(mockCtrl)

	token := validToken(t)
	identity := testutil.NewIdentity()

	gomock.InOrder(
		tokens.EXPECT().Get(gomock.Any()).Return(token, true, nil),
		client.EXPECT().FetchCurrentIdentity(gomock.Any(), token).Return(identity, nil),
		nav.EXPECT().Navigate(gomock.Any(), testLandingPath),
	)

	ctrl, err := NewSessionController(context.Background(), SessionControllerOptions{
		Tokens:      tokens,
		Intents:     localstore.NewMemoryIntentStore(),
		Codec:       jwtcodec.New(),
		Identity:    client,
		Navigator:   nav,
		LoginPath:   testLoginPath,
		LandingPath: testLandingPath,
	})
	require.NoError(t, err)
	waitReady(t, ctrl)
	require.True(t, ctrl.State().IsAuthenticated)

	// Every local step of logout still runs when storage fails.
	gomock.InOrder(
		tokens.EXPECT().Get(gomock.Any()).Return(token, true, nil),
		client.EXPECT().Logout(gomock.Any(), token).Return(errors.New("remote down")),
		tokens.EXPECT().Clear(gomock.Any()).Return(errors.New("disk full")),
		nav.EXPECT().Navigate(gomock.Any(), testLoginPath),
	)
	ctrl.Logout(context.Background())
	assert.False(t, ctrl.State().IsAuthenticated)
}

func TestSession_TokenStoreReadFailure(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	tokens := mocks.NewMockTokenStore(mockCtrl)
	client := mocks.NewMockIdentityClient(mockCtrl)
	nav := &fakes.RecordingNavigator{}

	tokens.EXPECT().Get(gomock.Any()).Return("", false, errors.New("permission denied")).Times(2)

	ctrl, err := NewSessionController(context.Background(), SessionControllerOptions{
		Tokens:      tokens,
		Intents:     localstore.NewMemoryIntentStore(),
		Codec:       jwtcodec.New(),
		Identity:    client,
		Navigator:   nav,
		LoginPath:   testLoginPath,
		LandingPath: testLandingPath,
	})
	require.NoError(t, err)
	waitReady(t, ctrl)

	err = ctrl.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.GetCode(err))
	assert.False(t, ctrl.State().IsAuthenticated)
	assert.Equal(t, testLoginPath, nav.Last())
}

type countingSink struct {
	mu     sync.Mutex
	counts map[string]int
}

func (s *countingSink) Count(_ string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[tags["op"]+"/"+tags["result"]] += int(value)
}

func (s *countingSink) Timing(string, time.Duration, map[string]string) {}

func (s *countingSink) get(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key]
}

func TestSession_EmitsMetrics(t *testing.T) {
	sink := &countingSink{}
	client := fakes.NewFakeIdentityClient()
	token := validToken(t)
	client.AddUser("ada", "pw", token, testutil.NewIdentity())

	ctrl, err := NewSessionController(context.Background(), SessionControllerOptions{
		Tokens:      localstore.NewMemoryTokenStore(),
		Intents:     localstore.NewMemoryIntentStore(),
		Codec:       jwtcodec.New(),
		Identity:    client,
		Navigator:   &fakes.RecordingNavigator{},
		LoginPath:   testLoginPath,
		LandingPath: testLandingPath,
		Metrics:     sink,
	})
	require.NoError(t, err)
	waitReady(t, ctrl)

	require.NoError(t, ctrl.Login(context.Background(), domainauth.Credentials{Username: "ada", Password: "pw"}))
	ctrl.Logout(context.Background())

	assert.Equal(t, 1, sink.get("refresh/error"))
	assert.Equal(t, 1, sink.get("login/success"))
	assert.Equal(t, 1, sink.get("refresh/success"))
	assert.Equal(t, 1, sink.get("logout/success"))
}
