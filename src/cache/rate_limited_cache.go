package cache

import (
	"context"
	"sync"
	"time"

	"market-pulse/src/analysis"
	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/metrics"
	"market-pulse/src/models"
	"market-pulse/src/utils"
)

// -----------------------------------------------------------------------------
// RateLimitedCache holds the latest upstream snapshot and gates refreshes so
// the upstream is called at most once per minInterval, whatever the number of
// readers. Reads never fail: they return the cached snapshot or a placeholder.
// -----------------------------------------------------------------------------

type RateLimitedCache struct {
	Upstream     interfaces.IUpstream
	Fallback     *analysis.FallbackGenerator
	Metrics      *metrics.Collector
	ErrorHandler *helpers.ErrorHandler
	Logger       *logger.Logger

	minInterval time.Duration
	assetCount  int
	now         func() time.Time

	mu          sync.Mutex
	snapshot    *models.MMarketSnapshot
	placeholder *models.MMarketSnapshot
	history     *utils.ChartHistory
	generation  uint64
	lastAttempt time.Time
	lastSuccess time.Time
	lastErrKind helpers.ErrorKind
	rateLimited bool
	attempts    int64
	failures    int64
	inflight    chan struct{}
}

// -----------------------------------------------------------------------------

func NewRateLimitedCache(
	cfg *models.MConfig,
	upstream interfaces.IUpstream,
	gen *analysis.FallbackGenerator,
	collector *metrics.Collector,
	log *logger.Logger,
) *RateLimitedCache {
	if log == nil {
		log = logger.NewLogger(cfg, "RateLimitedCache")
	}
	if gen == nil {
		gen = analysis.NewFallbackGenerator()
	}

	minInterval := cfg.Feed.MinAPIInterval.Duration()
	if minInterval <= 0 {
		minInterval = utils.DefaultMinAPIInterval
	}
	assetCount := cfg.Upstream.AssetCount
	if assetCount <= 0 {
		assetCount = utils.DefaultAssetCount
	}

	return &RateLimitedCache{
		Upstream:     upstream,
		Fallback:     gen,
		Metrics:      collector,
		ErrorHandler: helpers.NewErrorHandler(log),
		Logger:       log,
		minInterval:  minInterval,
		assetCount:   assetCount,
		now:          time.Now,
		history:      utils.NewChartHistory(cfg.Feed.MaxChartPoints),
	}
}

// -----------------------------------------------------------------------------

// GetSnapshot returns the freshest snapshot the gate allows.
func (c *RateLimitedCache) GetSnapshot(ctx context.Context) *models.MMarketSnapshot {
	return c.acquire(ctx).Snapshot
}

// -----------------------------------------------------------------------------

// Read returns a snapshot together with the chart history recorded up to it.
func (c *RateLimitedCache) Read(ctx context.Context) models.MFeedState {
	return c.acquire(ctx)
}

// -----------------------------------------------------------------------------

// acquire runs the gate. Deciding to fetch and stamping lastAttempt happen under
// one lock; callers arriving while a fetch is in flight wait for its result
// instead of issuing their own.
func (c *RateLimitedCache) acquire(ctx context.Context) models.MFeedState {
	c.mu.Lock()

	if wait := c.inflight; wait != nil {
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.stateLocked()
	}

	now := c.now()
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < c.minInterval {
		defer c.mu.Unlock()
		return c.stateLocked()
	}

	c.lastAttempt = now
	c.attempts++
	done := make(chan struct{})
	c.inflight = done
	c.mu.Unlock()

	// Runs last, also when the upstream panics, so waiters are always released.
	defer c.releaseInflight(done)

	// The fetch outlives a cancelled caller so waiters still get a result.
	start := time.Now()
	snap, err := c.Upstream.FetchMarketData(context.WithoutCancel(ctx), c.assetCount)
	took := time.Since(start)
	if err == nil && snap == nil {
		err = helpers.NewFetchError(helpers.KindUpstreamError, 0, "upstream returned no snapshot", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.recordFailureLocked(err, took)
	} else {
		c.publishLocked(snap, took)
	}
	return c.stateLocked()
}

// -----------------------------------------------------------------------------

func (c *RateLimitedCache) releaseInflight(done chan struct{}) {
	c.mu.Lock()
	if c.inflight == done {
		c.inflight = nil
	}
	c.mu.Unlock()
	close(done)
}

// -----------------------------------------------------------------------------

func (c *RateLimitedCache) publishLocked(snap *models.MMarketSnapshot, took time.Duration) {
	now := c.now()

	c.generation++
	snap.Generation = c.generation
	snap.Fallback = false
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = now
	}

	c.snapshot = snap
	c.placeholder = nil
	c.lastSuccess = now
	c.lastErrKind = ""
	c.rateLimited = false

	if lead, ok := snap.Lead(); ok {
		c.history.AppendValue(snap.FetchedAt, lead.CurrentPrice)
	}

	c.ErrorHandler.ResetErrorCount()
	c.Metrics.ObserveFetch(metrics.OutcomeSuccess, took)
	c.Metrics.SetLastSuccess(now)
	c.Logger.Debug("Published snapshot generation %d (%d assets) in %s", snap.Generation, len(snap.Assets), took)
}

// -----------------------------------------------------------------------------

// recordFailureLocked keeps the cached snapshot. Without one, a fresh
// placeholder is generated for this attempt and served until the next attempt.
func (c *RateLimitedCache) recordFailureLocked(err error, took time.Duration) {
	kind := c.ErrorHandler.Handle(err, "RateLimitedCache")
	c.failures++
	c.lastErrKind = kind
	c.rateLimited = helpers.IsRateLimited(err)
	c.Metrics.ObserveFetch(string(kind), took)

	if c.snapshot == nil {
		c.placeholder = c.Fallback.Snapshot(c.now())
		c.ErrorHandler.Handle(helpers.NewFetchError(helpers.KindNoDataFetched, 0, "no snapshot fetched yet", nil), "RateLimitedCache")
	}
}

// -----------------------------------------------------------------------------

func (c *RateLimitedCache) stateLocked() models.MFeedState {
	snap := c.snapshot
	if snap == nil {
		if c.placeholder == nil {
			c.placeholder = c.Fallback.Snapshot(c.now())
		}
		snap = c.placeholder
	}
	return models.MFeedState{
		Snapshot: snap,
		History:  c.history.Snapshot(),
	}
}

// -----------------------------------------------------------------------------

// History returns a copy of the chart history, oldest first.
func (c *RateLimitedCache) History() []models.MChartPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// -----------------------------------------------------------------------------

func (c *RateLimitedCache) MinInterval() time.Duration {
	return c.minInterval
}

// -----------------------------------------------------------------------------

func (c *RateLimitedCache) Status() models.MCacheStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := models.MCacheStatus{
		HasSnapshot:      c.snapshot != nil,
		Generation:       c.generation,
		LastErrorKind:    string(c.lastErrKind),
		FetchAttempts:    c.attempts,
		FetchFailures:    c.failures,
		ChartPoints:      c.history.Len(),
		MinAPIIntervalMs: c.minInterval.Milliseconds(),
		RateLimited:      c.rateLimited,
		ConsecutiveFails: c.ErrorHandler.Consecutive(),
		ErrorCounts:      make(map[string]int64),
	}
	for kind, n := range c.ErrorHandler.Counts() {
		status.ErrorCounts[string(kind)] = n
	}
	if !c.lastAttempt.IsZero() {
		t := c.lastAttempt
		status.LastFetchAttemptAt = &t
	}
	if !c.lastSuccess.IsZero() {
		t := c.lastSuccess
		status.LastFetchSuccessAt = &t
	}
	return status
}
