package models

import "time"

// MAsset is one ranked entry of a market snapshot.
type MAsset struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	CurrentPrice      float64   `json:"current_price"`
	MarketCap         float64   `json:"market_cap"`
	TotalVolume24h    float64   `json:"total_volume"`
	PriceChangePct24h float64   `json:"price_change_percentage_24h"`
	LastUpdated       time.Time `json:"last_updated"`
}

// -----------------------------------------------------------------------------

// MMarketSnapshot is the result of one upstream fetch, ordered by market cap descending.
// A published snapshot is never modified.
type MMarketSnapshot struct {
	Assets     []MAsset  `json:"assets"`
	FetchedAt  time.Time `json:"fetched_at"`
	Generation uint64    `json:"generation"`
	Fallback   bool      `json:"fallback"`
}

// IsEmpty reports whether there is nothing to derive views from.
func (s *MMarketSnapshot) IsEmpty() bool {
	return s == nil || len(s.Assets) == 0
}

// Lead returns the top-ranked asset.
func (s *MMarketSnapshot) Lead() (MAsset, bool) {
	if s.IsEmpty() {
		return MAsset{}, false
	}
	return s.Assets[0], true
}

// -----------------------------------------------------------------------------

// MChartPoint is one sample of the lead asset price.
type MChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// -----------------------------------------------------------------------------

// MFeedState is what a subscriber reads in one tick: a snapshot plus the chart
// history as it stood when that snapshot was current.
type MFeedState struct {
	Snapshot *MMarketSnapshot
	History  []MChartPoint
}
