package analysis

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"market-pulse/src/analysis/core"
	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------

// DeriveStats sums the snapshot into the summary card. Placeholder snapshots
// get synthetic values in the demo ranges instead.
func DeriveStats(snapshot *models.MMarketSnapshot, gen *FallbackGenerator) models.MDerivedStats {
	if snapshot.IsEmpty() || snapshot.Fallback {
		return gen.Stats()
	}

	caps := make([]float64, len(snapshot.Assets))
	volumes := make([]float64, len(snapshot.Assets))
	changes := make([]float64, len(snapshot.Assets))
	for i, a := range snapshot.Assets {
		caps[i] = a.MarketCap
		volumes[i] = a.TotalVolume24h
		changes[i] = a.PriceChangePct24h
	}

	// Unrounded; the dashboard formats for display.
	totalCap := core.Sum(caps)
	return models.MDerivedStats{
		TotalMarketCapBillions: totalCap / 1e9,
		TotalVolumeMillions:    core.Sum(volumes) / 1e6,
		MarketCapThousands:     totalCap / 1e3,
		AvgPriceChangePct:      core.Mean(changes),
	}
}

// -----------------------------------------------------------------------------

// DeriveChartSeries passes the history through, or synthesizes a series when
// nothing has been recorded yet.
func DeriveChartSeries(history []models.MChartPoint, gen *FallbackGenerator, now time.Time, points int) []models.MChartPoint {
	if len(history) == 0 {
		return gen.Chart(now, points)
	}
	out := make([]models.MChartPoint, len(history))
	copy(out, history)
	return out
}

// -----------------------------------------------------------------------------

// DeriveTableRows maps each asset to a row. Live rows are active iff the 24h
// change is non-negative; placeholder rows pick any of the three statuses.
func DeriveTableRows(snapshot *models.MMarketSnapshot, gen *FallbackGenerator, now time.Time) []models.MTableRow {
	if snapshot.IsEmpty() {
		snapshot = gen.Snapshot(now)
	}

	rows := make([]models.MTableRow, len(snapshot.Assets))
	for i, a := range snapshot.Assets {
		status := models.StatusInactive
		if snapshot.Fallback {
			status = gen.Status()
		} else if a.PriceChangePct24h >= 0 {
			status = models.StatusActive
		}

		rows[i] = models.MTableRow{
			ID:                 a.ID,
			Label:              a.Name,
			Status:             status,
			Value:              int64(math.Floor(a.CurrentPrice)),
			ISODate:            ISODate(a.LastUpdated, snapshot.FetchedAt, now),
			FormattedPrice:     FormatPrice(a.CurrentPrice),
			Change24hFormatted: FormatChange(a.PriceChangePct24h),
		}
	}
	return rows
}

// -----------------------------------------------------------------------------
// Formatting
// -----------------------------------------------------------------------------

// FormatPrice renders a dollar amount with thousands separators, e.g. $60,000.00.
func FormatPrice(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// FormatChange renders a signed percentage, e.g. +2.50%.
func FormatChange(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}

// ISODate returns the first non-zero timestamp as YYYY-MM-DD in UTC.
func ISODate(candidates ...time.Time) string {
	for _, t := range candidates {
		if !t.IsZero() {
			return t.UTC().Format("2006-01-02")
		}
	}
	return ""
}
