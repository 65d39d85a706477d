package aggregate

import (
	"fmt"
	"strings"
	"time"

	"fieldmap/internal/types"
)

// DateLayout is the ISO-8601 calendar date layout accepted for window bounds.
const DateLayout = "2006-01-02"

// acceptedLayouts lists the layouts tried in order when parsing a bound.
// Anything carrying a time of day is truncated to its UTC calendar date.
var acceptedLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Window is an inclusive range of UTC calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseWindow parses the start and end bounds of a window. A bound that is
// not a calendar date yields a validation error. A start after the end is
// not rejected here; such a window simply contains no readings.
func ParseWindow(start, end string) (Window, error) {
	s, err := parseBound("start_date", start)
	if err != nil {
		return Window{}, err
	}
	e, err := parseBound("end_date", end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// ParseDate parses a single bound and truncates it to midnight UTC.
func ParseDate(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return truncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
}

func parseBound(name, value string) (time.Time, error) {
	t, err := ParseDate(value)
	if err != nil {
		return time.Time{}, types.NewOpError(
			"parse_window",
			types.ErrCodeValidationInvalidDate,
			fmt.Sprintf("%s: %s", name, err.Error()),
			err,
		).WithDetails(map[string]any{"field": name, "value": value})
	}
	return t, nil
}

// Contains reports whether t falls on a calendar date inside the window.
func (w Window) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Empty reports whether the window can contain no dates at all.
func (w Window) Empty() bool {
	return w.Start.After(w.End)
}

// String renders the window as "start..end".
func (w Window) String() string {
	return w.Start.Format(DateLayout) + ".." + w.End.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
