package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/src/analysis"
	"market-pulse/src/metrics"
	"market-pulse/src/models"
)

func newTestServer(t *testing.T, p *stubProvider, opts ...func(*models.MConfig)) (*FastAPIServer, *httptest.Server) {
	t.Helper()

	cfg := &models.MConfig{LogLevel: "ERROR", Port: 8080}
	cfg.Feed.FetchInterval = models.MDuration(10 * time.Second)
	cfg.Feed.MinAPIInterval = models.MDuration(time.Hour)
	cfg.Feed.MaxChartPoints = 10
	cfg.Upstream.AssetCount = 5
	for _, opt := range opts {
		opt(cfg)
	}

	facade := analysis.NewAnalysisFacade(cfg, analysis.NewSeededFallbackGenerator(1), testLogger())
	s := NewFastAPIServer(cfg, p, facade, metrics.NewCollector(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.startWorkers(ctx)
	ts := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop(context.Background())
		cancel()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

type wireMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func readMessages(t *testing.T, conn *websocket.Conn, n int) []wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	out := make([]wireMessage, n)
	for i := range out {
		require.NoError(t, conn.ReadJSON(&out[i]))
	}
	return out
}

func TestWebSocketReceivesInitialViews(t *testing.T) {
	s, ts := newTestServer(t, newStubProvider())

	conn := dial(t, ts)
	defer conn.Close()

	msgs := readMessages(t, conn, 3)
	assert.Equal(t, "stats-update", msgs[0].Type)
	assert.Equal(t, "chart-update", msgs[1].Type)
	assert.Equal(t, "table-update", msgs[2].Type)

	var rows []models.MTableRow
	require.NoError(t, json.Unmarshal(msgs[2].Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "$60,000.00", rows[0].FormattedPrice)
	assert.Equal(t, "+2.00%", rows[0].Change24hFormatted)

	var stats models.MDerivedStats
	require.NoError(t, json.Unmarshal(msgs[0].Data, &stats))
	assert.Equal(t, 1560.0, stats.TotalMarketCapBillions)

	assert.Eventually(t, func() bool { return s.ActiveSessions() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebSocketRefreshCommand(t *testing.T) {
	_, ts := newTestServer(t, newStubProvider())

	conn := dial(t, ts)
	defer conn.Close()
	readMessages(t, conn, 3)

	require.NoError(t, conn.WriteJSON(models.MClientCommand{Command: models.CommandRefresh}))
	msgs := readMessages(t, conn, 3)
	assert.Equal(t, "stats-update", msgs[0].Type)
}

func TestWebSocketDisconnectRemovesSession(t *testing.T) {
	s, ts := newTestServer(t, newStubProvider())

	a := dial(t, ts)
	b := dial(t, ts)
	defer b.Close()
	readMessages(t, a, 3)
	readMessages(t, b, 3)
	assert.Eventually(t, func() bool { return s.ActiveSessions() == 2 }, time.Second, 10*time.Millisecond)

	a.Close()
	assert.Eventually(t, func() bool { return s.ActiveSessions() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.WriteJSON(models.MClientCommand{Command: models.CommandRefresh}))
	readMessages(t, b, 3)
}

func TestDisconnectStopsPushes(t *testing.T) {
	p := newStubProvider()
	s, ts := newTestServer(t, p, func(cfg *models.MConfig) {
		cfg.Feed.FetchInterval = models.MDuration(10 * time.Millisecond)
	})

	conn := dial(t, ts)
	readMessages(t, conn, 6)
	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return s.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Teardown stops the session before the socket is released, so once the
	// client is gone the read count settles and stays put across many ticks.
	time.Sleep(50 * time.Millisecond)
	settled := p.reads.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, p.reads.Load(), "session kept pushing after disconnect")
}

func TestWebSocketMalformedCommandClosesConnection(t *testing.T) {
	s, ts := newTestServer(t, newStubProvider())

	conn := dial(t, ts)
	defer conn.Close()
	readMessages(t, conn, 3)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return s.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopClosesSessions(t *testing.T) {
	s, ts := newTestServer(t, newStubProvider())

	conn := dial(t, ts)
	defer conn.Close()
	readMessages(t, conn, 3)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, 0, s.ActiveSessions())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestRejectsForeignOrigin(t *testing.T) {
	_, ts := newTestServer(t, newStubProvider())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRESTEndpoints(t *testing.T) {
	s, _ := newTestServer(t, newStubProvider())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 0.0, health["connections"])
	assert.Equal(t, true, health["has_snapshot"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fetchIntervalMs":10000`)
	assert.Contains(t, rec.Body.String(), `"minClientIntervalMs":2000`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"generation":1`)
	assert.Contains(t, rec.Body.String(), `"consecutive_failures":0`)
	assert.Contains(t, rec.Body.String(), `"rate_limited":false`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "market_pulse_server_active_sessions")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, newStubProvider())

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		allowed []string
		origin  string
		want    bool
	}{
		{nil, "", true},
		{nil, "http://localhost:3000", true},
		{nil, "http://127.0.0.1:5173", true},
		{nil, "https://dash.example.com", false},
		{[]string{"*"}, "https://anything.example", true},
		{[]string{"https://dash.example.com"}, "https://dash.example.com", true},
		{[]string{"https://dash.example.com"}, "https://other.example.com", false},
		{[]string{"https://*"}, "https://other.example.com", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, originAllowed(tt.allowed, tt.origin), "%v %q", tt.allowed, tt.origin)
	}
}
