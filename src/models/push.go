package models

// -----------------------------------------------------------------------------
// Push channel message types
// -----------------------------------------------------------------------------

const (
	MessageStatsUpdate = "stats-update"
	MessageChartUpdate = "chart-update"
	MessageTableUpdate = "table-update"
)

// MPushMessage is the envelope written to the socket.
type MPushMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Client commands
// -----------------------------------------------------------------------------

const (
	CommandRefresh     = "refresh"
	CommandSetInterval = "set-interval"
)

// MClientCommand is a message sent by the dashboard over the socket.
type MClientCommand struct {
	Command    string `json:"command"`
	IntervalMs int64  `json:"intervalMs,omitempty"`
}
