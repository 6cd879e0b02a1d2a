package scraper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farefinder/discovery-service/internal/scraper"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDateWindows_DefaultHorizon(t *testing.T) {
	windows := scraper.DateWindows(time.Date(2025, 6, 10, 17, 45, 0, 0, time.UTC), 8)
	require.Len(t, windows, 8)

	assert.Equal(t, date(2025, 6, 10), windows[0].Start)
	assert.Equal(t, date(2025, 7, 10), windows[0].End)
	assert.Equal(t, date(2025, 7, 11), windows[1].Start)
	assert.Equal(t, date(2025, 8, 11), windows[1].End)
}

func TestDateWindows_Contiguous(t *testing.T) {
	starts := []time.Time{
		date(2025, 1, 31),
		date(2024, 2, 29),
		date(2025, 12, 15),
		date(2025, 8, 31),
	}
	for _, start := range starts {
		windows := scraper.DateWindows(start, 8)
		require.Len(t, windows, 8)

		for i, w := range windows {
			assert.False(t, w.End.Before(w.Start), "window %d ends before it starts", i)

			// one calendar month: next month, same day unless clamped
			wantMonth := (int(w.Start.Month()) % 12) + 1
			assert.Equal(t, wantMonth, int(w.End.Month()), "window %d from %s", i, start)
			if w.End.Day() != w.Start.Day() {
				assert.Less(t, w.End.Day(), w.Start.Day())
				assert.Equal(t, 1, w.End.AddDate(0, 0, 1).Day(), "clamped end must be the last day of its month")
			}

			if i > 0 {
				assert.Equal(t, windows[i-1].End.AddDate(0, 0, 1), w.Start, "window %d not contiguous", i)
			}
		}
	}
}

func TestDateWindows_ClampsMonthEnd(t *testing.T) {
	windows := scraper.DateWindows(date(2025, 1, 31), 2)
	require.Len(t, windows, 2)

	assert.Equal(t, date(2025, 2, 28), windows[0].End)
	assert.Equal(t, date(2025, 3, 1), windows[1].Start)
	assert.Equal(t, date(2025, 4, 1), windows[1].End)
}

func TestDateWindows_LeapYear(t *testing.T) {
	windows := scraper.DateWindows(date(2024, 1, 30), 1)
	require.Len(t, windows, 1)
	assert.Equal(t, date(2024, 2, 29), windows[0].End)
}

func TestDateWindows_ZeroCount(t *testing.T) {
	assert.Empty(t, scraper.DateWindows(date(2025, 6, 10), 0))
	assert.Empty(t, scraper.DateWindows(date(2025, 6, 10), -3))
}

func TestDateWindows_Deterministic(t *testing.T) {
	start := date(2025, 3, 14)
	assert.Equal(t, scraper.DateWindows(start, 8), scraper.DateWindows(start, 8))
}
