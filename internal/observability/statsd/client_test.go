package statsd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		metric string
		global map[string]string
		local  map[string]string
		want   string
	}{
		{name: "bare", metric: "session.refresh", want: "session.refresh:1|c"},
		{name: "prefixed", prefix: "mmk", metric: "session.refresh", want: "mmk.session.refresh:1|c"},
		{name: "normalized", metric: " guard/decision..x ", want: "guard_decision.x:1|c"},
		{name: "empty name", metric: "  ", want: ""},
		{
			name:   "tags merged and sorted",
			metric: "m",
			global: map[string]string{"env": "prod", " service ": " console "},
			local:  map[string]string{"result": " ok ", "": "ignored", "env": "stage"},
			want:   "m:1|c|#env:stage,result:ok,service:console",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatLine(tt.prefix, tt.metric, "1", "c", tt.global, tt.local))
		})
	}
}

func TestClient_SendsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "mmk.",
		GlobalTags: map[string]string{"service": "console"},
	})
	require.NoError(t, err)
	defer client.Close()
	require.True(t, client.Enabled())

	client.Timing("session.refresh.duration", 1500*time.Microsecond, map[string]string{"result": "ok"})

	buf := make([]byte, 512)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "mmk.session.refresh.duration:1.5|ms|#result:ok,service:console", string(buf[:n]))
}

func TestClient_EnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn}
	assert.True(t, client.Enabled())

	require.NoError(t, client.Close())
	assert.False(t, client.Enabled())
	require.NoError(t, client.Close(), "second close is a no-op")

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	require.NoError(t, nilClient.Close())
	nilClient.Count("x", 1, nil)
}

func TestNewClient_DisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	client.Count("dropped", 1, nil)
}

func TestNewClient_DialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "statsd dial"))
}
