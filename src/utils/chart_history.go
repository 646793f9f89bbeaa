package utils

import (
	"sync"
	"time"

	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// ChartHistory keeps the last N lead-asset prices for the chart view.
// -----------------------------------------------------------------------------

type ChartHistory struct {
	buffer *RingBuffer
	mu     sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewChartHistory(maxPoints int) *ChartHistory {
	return &ChartHistory{buffer: NewRingBuffer(maxPoints)}
}

// -----------------------------------------------------------------------------

// Append records a point. Timestamps are expected to be non-decreasing; an
// older timestamp is clamped to the newest one already stored.
func (h *ChartHistory) Append(point models.MChartPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if last, ok := h.buffer.Last(); ok && point.Timestamp.Before(last.Timestamp) {
		point.Timestamp = last.Timestamp
	}
	h.buffer.Append(point)
}

// -----------------------------------------------------------------------------

// AppendValue is a shorthand for Append at the given time.
func (h *ChartHistory) AppendValue(at time.Time, value float64) {
	h.Append(models.MChartPoint{Timestamp: at, Value: value})
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy, oldest first. Callers may modify it freely.
func (h *ChartHistory) Snapshot() []models.MChartPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buffer.GetAll()
}

// -----------------------------------------------------------------------------

func (h *ChartHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.buffer.Size()
}

func (h *ChartHistory) Capacity() int {
	return h.buffer.Capacity()
}
