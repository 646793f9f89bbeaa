package analysis

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"market-pulse/src/analysis/core"
	"market-pulse/src/models"
)

// FallbackRows is the fixed size of the placeholder table.
const FallbackRows = 5

var (
	fallbackNames    = [FallbackRows]string{"Project Alpha", "Project Beta", "Project Gamma", "Project Delta", "Project Epsilon"}
	fallbackSymbols  = [FallbackRows]string{"ALPHA", "BETA", "GAMMA", "DELTA", "EPSLN"}
	fallbackStatuses = []string{models.StatusActive, models.StatusInactive, models.StatusPending}
)

// -----------------------------------------------------------------------------
// FallbackGenerator produces synthetic data shaped like real data. It is the
// only source of randomness in the feed.
// -----------------------------------------------------------------------------

type FallbackGenerator struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// -----------------------------------------------------------------------------

func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededFallbackGenerator returns a deterministic generator.
func NewSeededFallbackGenerator(seed uint64) *FallbackGenerator {
	return &FallbackGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// -----------------------------------------------------------------------------

// Stats returns summary values in the demo ranges:
// 5000-5999, 1000-1499, 100000-149999 and a growth of -10..+20.
func (g *FallbackGenerator) Stats() models.MDerivedStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return models.MDerivedStats{
		TotalMarketCapBillions: float64(5000 + g.rng.IntN(1000)),
		TotalVolumeMillions:    float64(1000 + g.rng.IntN(500)),
		MarketCapThousands:     float64(100000 + g.rng.IntN(50000)),
		AvgPriceChangePct:      core.Round(g.rng.Float64()*30-10, 2),
	}
}

// -----------------------------------------------------------------------------

// Chart returns points one minute apart ending at now, valued 50-149.
func (g *FallbackGenerator) Chart(now time.Time, points int) []models.MChartPoint {
	if points <= 0 {
		points = 10
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	series := make([]models.MChartPoint, points)
	for i := 0; i < points; i++ {
		series[i] = models.MChartPoint{
			Timestamp: now.Add(-time.Duration(points-1-i) * time.Minute),
			Value:     float64(50 + g.rng.IntN(100)),
		}
	}
	return series
}

// -----------------------------------------------------------------------------

// Snapshot returns a placeholder snapshot of FallbackRows assets.
func (g *FallbackGenerator) Snapshot(now time.Time) *models.MMarketSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	const month = 30 * 24 * time.Hour

	assets := make([]models.MAsset, FallbackRows)
	for i := range assets {
		price := float64(g.rng.IntN(10000))
		assets[i] = models.MAsset{
			ID:                fmt.Sprintf("row-%d", i),
			Name:              fallbackNames[i],
			Symbol:            fallbackSymbols[i],
			CurrentPrice:      price,
			MarketCap:         price * float64(1_000_000*(FallbackRows-i)),
			TotalVolume24h:    price * float64(10_000+g.rng.IntN(90_000)),
			PriceChangePct24h: core.Round(g.rng.Float64()*30-10, 2),
			LastUpdated:       now.Add(-time.Duration(g.rng.Int64N(int64(month)))).UTC(),
		}
	}

	return &models.MMarketSnapshot{
		Assets:    assets,
		FetchedAt: now,
		Fallback:  true,
	}
}

// -----------------------------------------------------------------------------

// Status picks one of active, inactive or pending.
func (g *FallbackGenerator) Status() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fallbackStatuses[g.rng.IntN(len(fallbackStatuses))]
}
