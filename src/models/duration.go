package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MDuration is a time.Duration that reads either a Go duration string ("6s")
// or a bare integer interpreted as milliseconds (6000).
type MDuration time.Duration

// Duration returns the value as a time.Duration.
func (d MDuration) Duration() time.Duration {
	return time.Duration(d)
}

// Milliseconds returns the value in whole milliseconds.
func (d MDuration) Milliseconds() int64 {
	return time.Duration(d).Milliseconds()
}

// -----------------------------------------------------------------------------

func (d *MDuration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = MDuration(parsed)
	return nil
}

func (d MDuration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// -----------------------------------------------------------------------------

// ParseDuration accepts "10s", "1m30s" or a plain millisecond count such as "10000".
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid duration %q: must not be negative", raw)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", raw)
	}
	return d, nil
}
