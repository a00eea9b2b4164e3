package timeutil

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is used when a setting carries no timezone or an unknown one.
const DefaultTimezone = "Asia/Ho_Chi_Minh"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp shapes produced by Postgres text output
// and ISO-8601 clients. Zone-less values are read as UTC. Empty or invalid
// input returns nil.
func ParseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// ParseTimestampPtr is ParseTimestamp for nullable columns.
func ParseTimestampPtr(value *string) *time.Time {
	if value == nil {
		return nil
	}
	return ParseTimestamp(*value)
}

// LoadLocation resolves an IANA zone name, falling back to DefaultTimezone and then UTC.
func LoadLocation(name string) *time.Location {
	if name = strings.TrimSpace(name); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
