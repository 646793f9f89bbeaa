package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pulse/src/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func liveSnapshot() *models.MMarketSnapshot {
	caps := []float64{5e9, 4e9, 3e9, 2e9, 1e9}
	changes := []float64{2.5, -1.25, 0, 4, -3}
	assets := make([]models.MAsset, len(caps))
	for i := range caps {
		assets[i] = models.MAsset{
			ID:                []string{"bitcoin", "ethereum", "tether", "solana", "xrp"}[i],
			Name:              []string{"Bitcoin", "Ethereum", "Tether", "Solana", "XRP"}[i],
			CurrentPrice:      []float64{60000.987, 3000.5, 1, 150.25, 0.5}[i],
			MarketCap:         caps[i],
			TotalVolume24h:    1e8,
			PriceChangePct24h: changes[i],
			LastUpdated:       testNow.Add(-time.Minute),
		}
	}
	return &models.MMarketSnapshot{Assets: assets, FetchedAt: testNow, Generation: 3}
}

func TestDeriveStatsSumsMarketCaps(t *testing.T) {
	stats := DeriveStats(liveSnapshot(), NewSeededFallbackGenerator(1))

	assert.Equal(t, 15.0, stats.TotalMarketCapBillions)
	assert.Equal(t, 500.0, stats.TotalVolumeMillions)
	assert.Equal(t, 15e6, stats.MarketCapThousands)
	assert.Equal(t, 0.45, stats.AvgPriceChangePct)
}

func TestDeriveStatsKeepsFullPrecision(t *testing.T) {
	snap := &models.MMarketSnapshot{Assets: []models.MAsset{
		{ID: "bitcoin", MarketCap: 1.2345e9, TotalVolume24h: 1234567, PriceChangePct24h: 1.2345},
	}}

	stats := DeriveStats(snap, NewSeededFallbackGenerator(1))

	assert.Equal(t, 1.2345, stats.TotalMarketCapBillions)
	assert.Equal(t, 1.234567, stats.TotalVolumeMillions)
	assert.Equal(t, 1234500.0, stats.MarketCapThousands)
	assert.Equal(t, 1.2345, stats.AvgPriceChangePct)
}

func TestDeriveStatsFallbackRanges(t *testing.T) {
	gen := NewSeededFallbackGenerator(7)

	for _, snap := range []*models.MMarketSnapshot{nil, {}, gen.Snapshot(testNow)} {
		for i := 0; i < 50; i++ {
			stats := DeriveStats(snap, gen)
			assert.GreaterOrEqual(t, stats.TotalMarketCapBillions, 5000.0)
			assert.Less(t, stats.TotalMarketCapBillions, 6000.0)
			assert.GreaterOrEqual(t, stats.TotalVolumeMillions, 1000.0)
			assert.Less(t, stats.TotalVolumeMillions, 1500.0)
			assert.GreaterOrEqual(t, stats.MarketCapThousands, 100000.0)
			assert.Less(t, stats.MarketCapThousands, 150000.0)
			assert.GreaterOrEqual(t, stats.AvgPriceChangePct, -10.0)
			assert.LessOrEqual(t, stats.AvgPriceChangePct, 20.0)
		}
	}
}

func TestDeriveChartSeries(t *testing.T) {
	gen := NewSeededFallbackGenerator(3)

	history := []models.MChartPoint{{Timestamp: testNow, Value: 42}}
	out := DeriveChartSeries(history, gen, testNow, 10)
	assert.Equal(t, history, out)

	fallback := DeriveChartSeries(nil, gen, testNow, 10)
	require.Len(t, fallback, 10)
	assert.Equal(t, testNow, fallback[9].Timestamp)
	assert.Equal(t, testNow.Add(-9*time.Minute), fallback[0].Timestamp)
	for _, p := range fallback {
		assert.GreaterOrEqual(t, p.Value, 50.0)
		assert.LessOrEqual(t, p.Value, 150.0)
	}
}

func TestDeriveTableRowsLive(t *testing.T) {
	rows := DeriveTableRows(liveSnapshot(), NewSeededFallbackGenerator(1), testNow)
	require.Len(t, rows, 5)

	assert.Equal(t, models.MTableRow{
		ID:                 "bitcoin",
		Label:              "Bitcoin",
		Status:             models.StatusActive,
		Value:              60000,
		ISODate:            "2026-03-01",
		FormattedPrice:     "$60,000.99",
		Change24hFormatted: "+2.50%",
	}, rows[0])

	assert.Equal(t, models.StatusInactive, rows[1].Status)
	assert.Equal(t, "-1.25%", rows[1].Change24hFormatted)
	assert.Equal(t, models.StatusActive, rows[2].Status, "zero change counts as active")
	for _, r := range rows {
		assert.NotEqual(t, models.StatusPending, r.Status)
	}
}

func TestDeriveTableRowsUsesFetchTimeWhenLastUpdatedMissing(t *testing.T) {
	snap := liveSnapshot()
	snap.Assets[0].LastUpdated = time.Time{}
	snap.FetchedAt = time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)

	rows := DeriveTableRows(snap, NewSeededFallbackGenerator(1), testNow)
	assert.Equal(t, "2026-02-28", rows[0].ISODate)
}

func TestDeriveTableRowsFallback(t *testing.T) {
	gen := NewSeededFallbackGenerator(11)

	rows := DeriveTableRows(nil, gen, testNow)
	require.Len(t, rows, FallbackRows)

	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		for _, r := range DeriveTableRows(nil, gen, testNow) {
			seen[r.Status] = true
			assert.Contains(t, []string{models.StatusActive, models.StatusInactive, models.StatusPending}, r.Status)
			assert.GreaterOrEqual(t, r.Value, int64(0))
			assert.Less(t, r.Value, int64(10000))
			assert.NotEmpty(t, r.ISODate)
		}
	}
	assert.True(t, seen[models.StatusPending], "placeholder rows use the ternary status set")

	assert.Equal(t, "row-0", rows[0].ID)
	assert.Equal(t, "Project Alpha", rows[0].Label)
	assert.Equal(t, "Project Epsilon", rows[4].Label)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatPrice(1234.5))
	assert.Equal(t, "$0.50", FormatPrice(0.5))
	assert.Equal(t, "+0.00%", FormatChange(0))
	assert.Equal(t, "-10.50%", FormatChange(-10.5))
	assert.Equal(t, "", ISODate(time.Time{}))
}
