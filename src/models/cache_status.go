package models

import "time"

// MCacheStatus is a read-only view of the shared cache for health and metrics endpoints.
type MCacheStatus struct {
	HasSnapshot        bool             `json:"has_snapshot"`
	Generation         uint64           `json:"generation"`
	LastFetchAttemptAt *time.Time       `json:"last_fetch_attempt_at"`
	LastFetchSuccessAt *time.Time       `json:"last_fetch_success_at"`
	LastErrorKind      string           `json:"last_error_kind,omitempty"`
	FetchAttempts      int64            `json:"fetch_attempts"`
	FetchFailures      int64            `json:"fetch_failures"`
	ChartPoints        int              `json:"chart_points"`
	MinAPIIntervalMs   int64            `json:"min_api_interval_ms"`
	RateLimited        bool             `json:"rate_limited"`
	ConsecutiveFails   int              `json:"consecutive_failures"`
	ErrorCounts        map[string]int64 `json:"error_counts"`
}
