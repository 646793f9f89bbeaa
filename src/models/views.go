package models

// Table row statuses. Live rows are only ever active/inactive; pending only
// appears on placeholder rows.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusPending  = "pending"
)

// MDerivedStats is the summary card projection.
type MDerivedStats struct {
	TotalMarketCapBillions float64 `json:"totalMarketCapBillions"`
	TotalVolumeMillions    float64 `json:"totalVolumeMillions"`
	MarketCapThousands     float64 `json:"marketCapThousands"`
	AvgPriceChangePct      float64 `json:"avgPriceChangePct"`
}

// MTableRow is one row of the table projection.
type MTableRow struct {
	ID                 string `json:"id"`
	Label              string `json:"label"`
	Status             string `json:"status"`
	Value              int64  `json:"value"`
	ISODate            string `json:"isoDate"`
	FormattedPrice     string `json:"formattedPrice"`
	Change24hFormatted string `json:"change24hFormatted"`
}

// MViewSet holds the three projections derived from a single feed read.
type MViewSet struct {
	Stats      MDerivedStats `json:"stats"`
	Chart      []MChartPoint `json:"chart"`
	Table      []MTableRow   `json:"table"`
	Generation uint64        `json:"generation"`
	Fallback   bool          `json:"fallback"`
}
