package scraper

import (
	"time"

	"farefinder/discovery-service/internal/model"
)

// DateWindows returns n contiguous one-month query windows starting on the
// calendar date of start. Each window ends one calendar month after it
// starts; the next one starts the following day.
func DateWindows(start time.Time, n int) []model.DateWindow {
	if n <= 0 {
		return []model.DateWindow{}
	}

	windows := make([]model.DateWindow, 0, n)
	current := truncateToDate(start)
	for i := 0; i < n; i++ {
		end := addMonth(current)
		windows = append(windows, model.DateWindow{Start: current, End: end})
		current = end.AddDate(0, 0, 1)
	}
	return windows
}

// addMonth moves t one calendar month forward, clamping the day to the last
// day of the target month (Jan 31 -> Feb 28/29) instead of overflowing.
func addMonth(t time.Time) time.Time {
	y, m, d := t.Date()
	firstOfNext := time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
	last := firstOfNext.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, 0, 0, 0, 0, t.Location())
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
