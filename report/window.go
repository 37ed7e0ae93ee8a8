package report

import (
	"errors"
	"time"
)

// =============================================================================
// TIME WINDOWS - Reporting periods
// =============================================================================

// ErrInvalidWindow is returned when a window's end does not follow its start.
var ErrInvalidWindow = errors.New("invalid window: end not after start")

// Window is a half-open reporting period: Start inclusive, End exclusive.
// Half-open bounds keep timestamps on the final day inside the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a custom window.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// MonthWindow covers one calendar month.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// QuarterWindow covers one calendar quarter (1-4).
func QuarterWindow(year int, quarter int) Window {
	start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 3, 0)}
}

// YearWindow covers one calendar year.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// IsZero reports whether the window is unset (no filtering).
func (w Window) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}
