package utils

import (
	"fmt"
	"strings"
	"time"
)

// WIBLayout is the civil time representation stored on every ticket.
const WIBLayout = "2006-01-02T15:04:05.000-07:00"

// WIB is Western Indonesia Time, a fixed UTC+7 zone with no daylight saving.
var WIB = time.FixedZone("WIB", 7*60*60)

// Clock returns the current time. Tests replace it with a fixed clock.
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// FormatWIB renders t in WIB with millisecond precision, e.g.
// 2025-01-31T14:05:09.120+07:00.
func FormatWIB(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(WIB).Format(WIBLayout)
}

// ParseWIB parses a timestamp written by FormatWIB. Values typed by hand
// into the sheet without an offset are read as WIB civil time.
func ParseWIB(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.In(WIB), nil
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, value, WIB); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// TruncateMillis drops precision the stored representation cannot carry.
func TruncateMillis(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}
