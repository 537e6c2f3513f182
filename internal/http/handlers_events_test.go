package httpx

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/mmk-console/internal/domain/auth"
)

// readEvent returns the data line of the next event named name, skipping
// comments and other events.
func readEvent(t *testing.T, r *bufio.Reader, name string) string {
	t.Helper()
	var event, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && data != "":
			if event == name {
				return data
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, path string) *bufio.Reader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body)
}

func TestSessionEvents_LogoutEvictsView(t *testing.T) {
	h := newConsoleHarness(t, true)
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/session/events?path=/orders")
	assert.JSONEq(t, `{"decision":"render"}`, readEvent(t, stream, "decision"))

	h.session.Logout(context.Background())
	assert.JSONEq(t, `{"decision":"redirect","location":"/login"}`, readEvent(t, stream, "decision"))

	path, ok, err := h.intents.Take(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/orders", path)
}

func TestSessionEvents_StreamsNavigations(t *testing.T) {
	h := newConsoleHarness(t, false)
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/session/events?path=/orders")
	assert.JSONEq(t, `{"decision":"redirect","location":"/login"}`, readEvent(t, stream, "decision"))

	require.NoError(t, h.session.Login(context.Background(), domainauth.Credentials{Username: "operator", Password: "hunter2"}))
	// The stored intent is where the console lands after login.
	for {
		if readEvent(t, stream, "navigate") == `{"location":"/orders"}` {
			break
		}
	}
}

func TestSessionEvents_Heartbeat(t *testing.T) {
	guard, _ := newFixedGuard(t, domainauth.SessionState{})
	srv := httptest.NewServer(&SessionEventsHandler{
		Guard:       guard,
		LandingPath: "/dashboard",
		Heartbeat:   10 * time.Millisecond,
	})
	t.Cleanup(srv.Close)

	stream := openStream(t, srv, "/session/events?path=//evil")
	assert.JSONEq(t, `{"decision":"loading"}`, readEvent(t, stream, "decision"))

	for {
		line, err := stream.ReadString('\n')
		require.NoError(t, err)
		if line == ": ping\n" {
			return
		}
	}
}
