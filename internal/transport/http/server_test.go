package http

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wireirc/internal/config"
	"github.com/vovakirdan/wireirc/internal/core"
	"github.com/vovakirdan/wireirc/internal/proto"
	"github.com/vovakirdan/wireirc/internal/transport/conn"
)

func startTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	root := core.NewRoot(core.Options{
		Server: proto.ServerInfo{Name: "irc.test", Network: "TestNet", Version: "test"},
		Logger: &logger,
	})
	world := core.NewWorld(root, conn.Options{WriteTimeout: time.Second, Logger: &logger})

	ts := httptest.NewServer(NewRouter(world, cfg, &logger))
	t.Cleanup(func() {
		root.Close()
		ts.Close()
	})
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) (*websocket.Conn, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	c, _, err := websocket.Dial(ctx, wsURL, nil)
	return c, err
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestServer(t, config.Default())

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func getStats(t *testing.T, ts *httptest.Server) StatsResponse {
	t.Helper()

	resp, err := ts.Client().Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	var st StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestStatsEndpointEmpty(t *testing.T) {
	ts := startTestServer(t, config.Default())

	st := getStats(t, ts)
	assert.Equal(t, 0, st.Users)
	assert.Empty(t, st.Rooms)
	assert.Equal(t, TotalsResponse{}, st.Totals)
}

func TestWebSocketSession(t *testing.T) {
	ts := startTestServer(t, config.Default())

	ws, err := dialWS(t, ts)
	require.NoError(t, err)
	defer ws.Close(websocket.StatusNormalClosure, "done")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	nc := websocket.NetConn(ctx, ws, websocket.MessageText)
	r := bufio.NewReader(nc)

	_, err = io.WriteString(nc, "NICK alice\r\nUSER alice 0 * :Alice\r\n")
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":irc.test 001 alice :Welcome to the TestNet IRC network, alice\r\n", line)
	for range 3 {
		_, err = r.ReadString('\n')
		require.NoError(t, err)
	}

	_, err = io.WriteString(nc, "JOIN #web\r\n")
	require.NoError(t, err)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ":alice JOIN :#web\r\n", line)

	require.Eventually(t, func() bool {
		st := getStats(t, ts)
		return st.Registered == 1 && len(st.Rooms) == 1 && st.Rooms[0].Members == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocketAcceptLimit(t *testing.T) {
	cfg := config.Default()
	cfg.WSAcceptLimit = 1
	ts := startTestServer(t, cfg)

	first, err := dialWS(t, ts)
	require.NoError(t, err)
	defer first.Close(websocket.StatusNormalClosure, "done")

	_, err = dialWS(t, ts)
	require.Error(t, err)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow())
	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	now = now.Add(time.Minute)
	assert.True(t, rl.allow())

	var unlimited *rateLimiter
	assert.True(t, unlimited.allow())
	assert.True(t, newRateLimiter(0).allow())
}
