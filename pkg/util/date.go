package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// unix values at or above this are taken as milliseconds
const millisThreshold = 100_000_000_000

// ParseTime accepts "now", RFC3339 (with or without fractional seconds), unix seconds
// and unix milliseconds.
func ParseTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return time.Time{}, fmt.Errorf("empty time")
	case strings.EqualFold(s, "now"):
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	}
	if ts >= millisThreshold {
		return time.UnixMilli(ts), nil
	}
	return time.Unix(ts, 0), nil
}

// ParseMillis is ParseTime reduced to unix milliseconds. Empty input yields def.
func ParseMillis(s string, def int64, now time.Time) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	t, err := ParseTime(s, now)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// FormatMillis renders unix milliseconds as RFC3339 in UTC.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
