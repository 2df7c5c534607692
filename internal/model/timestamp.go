package model

import (
	"fmt"
	"time"
)

// StorageLayout is fixed-width and always UTC, so lexical order of stored
// values equals chronological order.
const StorageLayout = "2006-01-02T15:04:05.000000Z"

// LegacyLayout is accepted on read for rows written without a zone.
const LegacyLayout = "2006-01-02T15:04:05"

// FormatTimestamp renders t in the storage layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(StorageLayout)
}

// ParseTimestamp parses a stored timestamp, trying RFC3339 first and the
// legacy zone-less layout second.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(LegacyLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t, nil
}
