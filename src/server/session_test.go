package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/src/analysis"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

type stubProvider struct {
	reads atomic.Int64
	state models.MFeedState
}

func (p *stubProvider) GetSnapshot(ctx context.Context) *models.MMarketSnapshot {
	return p.Read(ctx).Snapshot
}

func (p *stubProvider) Read(ctx context.Context) models.MFeedState {
	p.reads.Add(1)
	return p.state
}

func (p *stubProvider) History() []models.MChartPoint { return p.state.History }

func (p *stubProvider) Status() models.MCacheStatus {
	return models.MCacheStatus{HasSnapshot: p.state.Snapshot != nil, Generation: 1}
}

func newStubProvider() *stubProvider {
	now := time.Now()
	return &stubProvider{state: models.MFeedState{
		Snapshot: &models.MMarketSnapshot{
			Assets: []models.MAsset{
				{ID: "bitcoin", Name: "Bitcoin", CurrentPrice: 60000, MarketCap: 1.2e12, TotalVolume24h: 3e10, PriceChangePct24h: 2},
				{ID: "ethereum", Name: "Ethereum", CurrentPrice: 3000, MarketCap: 3.6e11, TotalVolume24h: 1.5e10, PriceChangePct24h: -1},
			},
			FetchedAt:  now,
			Generation: 1,
		},
		History: []models.MChartPoint{{Timestamp: now, Value: 60000}},
	}}
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&models.MConfig{LogLevel: "ERROR"}, "test")
}

func newTestSession(p *stubProvider, opts SessionOptions) *Session {
	facade := analysis.NewAnalysisFacade(&models.MConfig{LogLevel: "ERROR"}, analysis.NewSeededFallbackGenerator(1), testLogger())
	return NewSession("test-session", p, facade, nil, testLogger(), opts)
}

func receive(t *testing.T, s *Session, n int, within time.Duration) []models.MPushMessage {
	t.Helper()
	out := make([]models.MPushMessage, 0, n)
	deadline := time.After(within)
	for len(out) < n {
		select {
		case msg, ok := <-s.Send():
			require.True(t, ok, "queue closed early")
			out = append(out, msg.(models.MPushMessage))
		case <-deadline:
			t.Fatalf("received %d of %d messages", len(out), n)
		}
	}
	return out
}

func TestSessionPushesImmediatelyOnStart(t *testing.T) {
	p := newStubProvider()
	s := newTestSession(p, SessionOptions{Interval: 10 * time.Second})
	s.Start()
	defer s.Stop()

	msgs := receive(t, s, 3, time.Second)
	assert.Equal(t, models.MessageStatsUpdate, msgs[0].Type)
	assert.Equal(t, models.MessageChartUpdate, msgs[1].Type)
	assert.Equal(t, models.MessageTableUpdate, msgs[2].Type)

	rows := msgs[2].Data.([]models.MTableRow)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusActive, rows[0].Status)
	assert.Equal(t, models.StatusInactive, rows[1].Status)
	assert.Equal(t, int64(1), p.reads.Load(), "one cache read per tick")
}

func TestSessionPushesOnEveryTick(t *testing.T) {
	p := newStubProvider()
	s := newTestSession(p, SessionOptions{Interval: 20 * time.Millisecond, MinInterval: 10 * time.Millisecond, MaxInterval: time.Second})
	s.Start()
	defer s.Stop()

	receive(t, s, 9, 2*time.Second)
	assert.GreaterOrEqual(t, p.reads.Load(), int64(3))
}

func TestSessionStopClosesQueue(t *testing.T) {
	p := newStubProvider()
	s := newTestSession(p, SessionOptions{Interval: 20 * time.Millisecond, MinInterval: 10 * time.Millisecond, MaxInterval: time.Second})
	s.Start()
	receive(t, s, 3, time.Second)

	s.Stop()

	// Whatever was already queued drains, then the channel is closed.
	drained := make(chan struct{})
	go func() {
		for range s.Send() {
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("queue not closed after Stop")
	}

	readsAfterStop := p.reads.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, readsAfterStop, p.reads.Load(), "no reads after Stop")

	assert.NotPanics(t, s.Stop)
}

func TestSessionsAreIndependent(t *testing.T) {
	p := newStubProvider()
	fast := newTestSession(p, SessionOptions{Interval: 20 * time.Millisecond, MinInterval: 10 * time.Millisecond, MaxInterval: time.Second})
	slow := newTestSession(p, SessionOptions{Interval: 10 * time.Second})
	fast.Start()
	slow.Start()
	defer fast.Stop()

	receive(t, slow, 3, time.Second)
	slow.Stop()

	receive(t, fast, 6, 2*time.Second)
	assert.Equal(t, 20*time.Millisecond, fast.Interval())
}

func TestSessionSetIntervalClamps(t *testing.T) {
	s := newTestSession(newStubProvider(), SessionOptions{Interval: 5 * time.Second, MinInterval: 2 * time.Second, MaxInterval: 10 * time.Second})
	s.Start()
	defer s.Stop()

	require.NoError(t, s.HandleCommand([]byte(`{"command":"set-interval","intervalMs":500}`)))
	assert.Equal(t, 2*time.Second, s.Interval())

	require.NoError(t, s.HandleCommand([]byte(`{"command":"set-interval","intervalMs":60000}`)))
	assert.Equal(t, 10*time.Second, s.Interval())

	require.NoError(t, s.HandleCommand([]byte(`{"command":"set-interval","intervalMs":4000}`)))
	assert.Equal(t, 4*time.Second, s.Interval())

	require.NoError(t, s.HandleCommand([]byte(`{"command":"set-interval"}`)))
	assert.Equal(t, 4*time.Second, s.Interval())
}

func TestSessionRefreshCommand(t *testing.T) {
	s := newTestSession(newStubProvider(), SessionOptions{Interval: 10 * time.Second})
	s.Start()
	defer s.Stop()

	receive(t, s, 3, time.Second)
	require.NoError(t, s.HandleCommand([]byte(`{"command":"refresh"}`)))
	msgs := receive(t, s, 3, time.Second)
	assert.Equal(t, models.MessageStatsUpdate, msgs[0].Type)
}

func TestSessionRejectsMalformedCommand(t *testing.T) {
	s := newTestSession(newStubProvider(), SessionOptions{})
	assert.Error(t, s.HandleCommand([]byte(`not json`)))
	assert.NoError(t, s.HandleCommand([]byte(`{"command":"dance"}`)))
}

func TestSessionOverflowDropsConsumer(t *testing.T) {
	s := newTestSession(newStubProvider(), SessionOptions{Interval: 10 * time.Second, BufferSize: 2})

	overflowed := make(chan struct{}, 1)
	s.onOverflow = func() { overflowed <- struct{}{} }
	s.Start()
	defer s.Stop()

	select {
	case <-overflowed:
	case <-time.After(time.Second):
		t.Fatal("expected overflow callback")
	}
}

func TestSessionStopBeforeStart(t *testing.T) {
	s := newTestSession(newStubProvider(), SessionOptions{})
	s.Stop()
	s.Start()

	_, ok := <-s.Send()
	assert.False(t, ok)
}
