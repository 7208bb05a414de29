// Package translate converts between the service's inputs, compute service
// metadata and STAC records.
package translate

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted from clients.
const DateLayout = "2006-01-02"

// DefaultWindowDays is the half-width of the search window around the target
// date.
const DefaultWindowDays = 15

// Timestamp formats observed in compute service and STAC API responses.
var sceneTimeFormats = []string{
	time.RFC3339Nano,             // "2024-01-10T05:32:11.024Z"
	time.RFC3339,                 // "2024-01-10T05:32:11Z"
	"2006-01-02T15:04:05.999999", // STAC APIs that omit the zone
	"2006-01-02T15:04:05",
}

// DateWindow is a closed interval of calendar days, both ends inclusive.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}

	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidDate, s)
	}
	return t, nil
}

// ResolveWindow returns the window of days on either side of date. Month and
// year boundaries follow the calendar.
func ResolveWindow(date string, days int) (DateWindow, error) {
	t, err := ParseDate(date)
	if err != nil {
		return DateWindow{}, err
	}
	return WindowAround(t, days), nil
}

// WindowAround returns [t - days, t + days] truncated to whole days.
func WindowAround(t time.Time, days int) DateWindow {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return DateWindow{
		Start: day.AddDate(0, 0, -days),
		End:   day.AddDate(0, 0, days),
	}
}

// StartDate formats the first day of the window.
func (w DateWindow) StartDate() string {
	return w.Start.Format(DateLayout)
}

// EndDate formats the last day of the window.
func (w DateWindow) EndDate() string {
	return w.End.Format(DateLayout)
}

// ExclusiveEnd is the instant just after the last day, for APIs whose end
// bound is exclusive.
func (w DateWindow) ExclusiveEnd() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls on a day inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(w.Start) && t.Before(w.ExclusiveEnd())
}

// Interval formats the window as a STAC datetime interval.
func (w DateWindow) Interval() string {
	return FormatSTACTime(w.Start) + "/" + FormatSTACTime(w.ExclusiveEnd().Add(-time.Second))
}

func (w DateWindow) String() string {
	return w.StartDate() + ".." + w.EndDate()
}

// ParseSceneTime parses a scene acquisition timestamp. Returns time in UTC.
func ParseSceneTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty time string", ErrInvalidDateTime)
	}

	s = strings.TrimSpace(s)

	var lastErr error
	for _, format := range sceneTimeFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDateTime, s, lastErr)
}

// FormatSTACTime formats a time.Time as RFC3339 for STAC.
// STAC uses RFC3339 format: "2023-06-15T14:00:00Z"
func FormatSTACTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
