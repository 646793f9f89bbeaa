package interfaces

import (
	"context"

	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// IUpstream fetches market snapshots from an external provider.
// -----------------------------------------------------------------------------

type IUpstream interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// FetchMarketData returns the top count assets ordered by market cap.
	// Errors are *helpers.FetchError values.
	FetchMarketData(ctx context.Context, count int) (*models.MMarketSnapshot, error)
}

// -----------------------------------------------------------------------------
// ISnapshotProvider is the read side of the rate-limited cache.
// -----------------------------------------------------------------------------

type ISnapshotProvider interface {

	// GetSnapshot returns the freshest permitted snapshot. It never fails.
	GetSnapshot(ctx context.Context) *models.MMarketSnapshot

	// -----------------------------------------------------------------------------

	// Read returns a snapshot and the chart history taken together.
	Read(ctx context.Context) models.MFeedState

	// -----------------------------------------------------------------------------

	// History returns a copy of the chart history, oldest first.
	History() []models.MChartPoint

	// -----------------------------------------------------------------------------

	// Status reports gate and fetch counters.
	Status() models.MCacheStatus
}
