package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.ObserveFetch(OutcomeSuccess, 120*time.Millisecond)
	c.ObserveFetch("RateLimited", 10*time.Millisecond)
	c.ObserveFetch("RateLimited", 10*time.Millisecond)
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()
	c.PushSent("stats-update")
	c.SetLastSuccess(time.Unix(1700000000, 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchAttempts.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.fetchAttempts.WithLabelValues("RateLimited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pushes.WithLabelValues("stats-update")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(c.lastSuccess))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFetch(OutcomeSuccess, time.Second)
		c.SessionOpened()
		c.SessionClosed()
		c.PushSent("chart-update")
		c.SetLastSuccess(time.Now())
	})
	assert.Nil(t, c.Registry())
	assert.NotNil(t, c.Handler())
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.PushSent("table-update")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `market_pulse_server_pushes_total{type="table-update"} 1`))
}
