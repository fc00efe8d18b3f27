// Package timezone provides timezone utilities for the vocadrill application.
//
// Review scheduling is day-granular, so the timezone chosen here decides when
// "today" rolls over and a card becomes due. All parsing and formatting of
// user-facing times goes through this package.
package timezone

import (
	"fmt"
	"time"
)

// Default location constants
var (
	// UTC is the coordinated universal time timezone
	UTC = time.UTC

	// Local is the machine's local timezone
	Local = time.Local
)

// ParseTimezone parses an IANA timezone identifier (e.g. "Asia/Shanghai").
// Empty and "Local" resolve to the machine's local timezone. On error the
// local timezone is returned so callers keep a usable default.
func ParseTimezone(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local":
		return Local, nil
	case "UTC":
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Local, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// MustParseTimezone parses a timezone or panics if invalid.
// Use this for constants that are known to be valid at compile time.
func MustParseTimezone(tz string) *time.Location {
	loc, err := ParseTimezone(tz)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	switch tz {
	case "", "Local", "UTC":
		return true
	}

	_, err := time.LoadLocation(tz)
	return err == nil
}

// ToUserTimezone converts a Unix timestamp to the user's timezone.
func ToUserTimezone(ts int64, tz *time.Location) time.Time {
	if tz == nil {
		tz = Local
	}
	return time.Unix(ts, 0).In(tz)
}

// FormatTimeWithTimezone formats a Unix timestamp as a string in the given timezone.
// The format should be a valid Go time format string (e.g., "2006-01-02 15:04").
func FormatTimeWithTimezone(ts int64, tz *time.Location, format string) string {
	if tz == nil {
		tz = Local
	}
	return time.Unix(ts, 0).In(tz).Format(format)
}

// FormatDueDate formats a card's next review timestamp as a calendar date.
// A card that was never reviewed has no timestamp and shows as "new".
func FormatDueDate(ts *int64, tz *time.Location) string {
	if ts == nil {
		return "new"
	}
	return FormatTimeWithTimezone(*ts, tz, "2006-01-02")
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = Local
	}
	return time.Date(t.In(tz).Year(), t.In(tz).Month(), t.In(tz).Day(), 0, 0, 0, 0, tz)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the given timezone.
func EndOfDay(t time.Time, tz *time.Location) time.Time {
	if tz == nil {
		tz = Local
	}
	return time.Date(t.In(tz).Year(), t.In(tz).Month(), t.In(tz).Day(), 23, 59, 59, 999999999, tz)
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = Local
	}
	return time.Now().In(tz)
}
