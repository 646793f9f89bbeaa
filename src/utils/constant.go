package utils

import "time"

// -----------------------------------------------------------------------------

// Feed defaults. The upstream free tier allows roughly ten calls a minute, so
// the shared gate sits at six seconds while each session ticks every ten.
const (
	DefaultMaxChartPoints    = 10
	DefaultAssetCount        = 5
	DefaultFetchInterval     = 10 * time.Second
	DefaultMinAPIInterval    = 6 * time.Second
	DefaultRequestTimeout    = 5 * time.Second
	DefaultMinClientInterval = 2 * time.Second
	DefaultMaxClientInterval = 10 * time.Second
	DefaultSendBufferSize    = 256
)

// -----------------------------------------------------------------------------

// ClampDuration bounds d to [lo, hi].
func ClampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
