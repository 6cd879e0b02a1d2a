package scraper_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farefinder/discovery-service/internal/model"
	"farefinder/discovery-service/internal/scraper"
)

// fakeSource serves canned timetables keyed by "CODE|from".
type fakeSource struct {
	discoverErr error
	timetables  map[string]scraper.Timetable
	delay       time.Duration

	mu        sync.Mutex
	calls     []string
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (f *fakeSource) DiscoverBaseURL(context.Context) (string, error) {
	if f.discoverErr != nil {
		return "", f.discoverErr
	}
	return "https://be.example.test/Api/search/timetable", nil
}

func (f *fakeSource) FetchTimetable(ctx context.Context, _ string, destination string, w model.DateWindow) scraper.Timetable {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxFlight.Load()
		if n <= cur || f.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	key := destination + "|" + w.Start.Format("2006-01-02")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return scraper.Timetable{}
		}
	}
	return f.timetables[key]
}

func fare(dep, arr string, price float64, dates ...string) scraper.RawFare {
	body := fmt.Sprintf(`{"departureStation":%q,"arrivalStation":%q,"price":{"amount":%v},"originalPrice":{"amount":%v},"departureDates":[`,
		dep, arr, price, price*2)
	for i, d := range dates {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf("%q", d)
	}
	body += "]}"

	var rf scraper.RawFare
	if err := json.Unmarshal([]byte(body), &rf); err != nil {
		panic(err)
	}
	return rf
}

func testDirectory() model.Directory {
	return model.NewDirectory([]model.Airport{
		{Code: "SKP", Name: "Skopje", Country: "Macedonia"},
		{Code: "VIE", Name: "Vienna", Country: "Austria"},
		{Code: "BTS", Name: "Bratislava", Country: "Slovakia"},
	}, []model.NearbyAirport{{AirportCode: "VIE", NearbyCode: "BTS"}})
}

func TestWorker_BuildsInventoryPerAirport(t *testing.T) {
	windows := scraper.DateWindows(date(2025, 6, 10), 2)
	src := &fakeSource{timetables: map[string]scraper.Timetable{
		"VIE|2025-06-10": {
			OutboundFlights: []scraper.RawFare{fare("SKP", "VIE", 20, "2025-06-10T08:00:00", "2025-06-11T08:00:00")},
			ReturnFlights:   []scraper.RawFare{fare("VIE", "SKP", 25, "2025-06-12T10:00:00")},
		},
		"VIE|2025-07-11": {
			OutboundFlights: []scraper.RawFare{fare("SKP", "VIE", 30, "2025-07-20T08:00:00")},
		},
		"BTS|2025-07-11": {
			ReturnFlights: []scraper.RawFare{fare("BTS", "SKP", 15, "2025-07-22T21:00:00")},
		},
	}}

	w := scraper.NewWorker("SKP", src, 4)
	inv, err := w.Run(context.Background(), testDirectory(), windows)
	require.NoError(t, err)

	// home is never queried against itself
	assert.NotContains(t, inv, "SKP")
	require.Contains(t, inv, "VIE")
	require.Contains(t, inv, "BTS")

	assert.Len(t, inv["VIE"].Outbound, 3)
	assert.Len(t, inv["VIE"].Return, 1)
	assert.Empty(t, inv["BTS"].Outbound)
	assert.Len(t, inv["BTS"].Return, 1)
	assert.Equal(t, model.DirectionReturn, inv["BTS"].Return[0].Direction)

	// airports × windows units of work
	src.mu.Lock()
	calls := append([]string(nil), src.calls...)
	src.mu.Unlock()
	sort.Strings(calls)
	assert.Equal(t, []string{"BTS|2025-06-10", "BTS|2025-07-11", "VIE|2025-06-10", "VIE|2025-07-11"}, calls)
}

func TestWorker_BackendDiscoveryIsFatal(t *testing.T) {
	src := &fakeSource{discoverErr: fmt.Errorf("%w: status 503", scraper.ErrBackendDiscovery)}

	inv, err := scraper.NewWorker("SKP", src, 4).Run(context.Background(), testDirectory(), scraper.DateWindows(date(2025, 6, 10), 8))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scraper.ErrBackendDiscovery))
	assert.Nil(t, inv)
	assert.Empty(t, src.calls, "no fare query may be issued after a discovery failure")
}

func TestWorker_MalformedTimestampFailsRun(t *testing.T) {
	src := &fakeSource{timetables: map[string]scraper.Timetable{
		"VIE|2025-06-10": {OutboundFlights: []scraper.RawFare{fare("SKP", "VIE", 20, "June 10th")}},
	}}

	_, err := scraper.NewWorker("SKP", src, 4).Run(context.Background(), testDirectory(), scraper.DateWindows(date(2025, 6, 10), 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scraper.ErrMalformedTimestamp))
	assert.Contains(t, err.Error(), "VIE")
}

func TestWorker_RespectsConcurrencyBound(t *testing.T) {
	airports := []model.Airport{{Code: "SKP"}}
	for i := 0; i < 6; i++ {
		airports = append(airports, model.Airport{Code: fmt.Sprintf("A%02d", i)})
	}
	dir := model.NewDirectory(airports, nil)
	src := &fakeSource{delay: 10 * time.Millisecond}

	_, err := scraper.NewWorker("SKP", src, 3).Run(context.Background(), dir, scraper.DateWindows(date(2025, 6, 10), 4))
	require.NoError(t, err)

	assert.Len(t, src.calls, 24)
	assert.LessOrEqual(t, src.maxFlight.Load(), int32(3))
}

func TestWorker_CancelledRunFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{delay: time.Second}
	time.AfterFunc(20*time.Millisecond, cancel)

	inv, err := scraper.NewWorker("SKP", src, 2).Run(ctx, testDirectory(), scraper.DateWindows(date(2025, 6, 10), 3))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, inv)
}

func TestWorker_Idempotent(t *testing.T) {
	windows := scraper.DateWindows(date(2025, 6, 10), 2)
	src := &fakeSource{timetables: map[string]scraper.Timetable{
		"VIE|2025-06-10": {OutboundFlights: []scraper.RawFare{fare("SKP", "VIE", 20, "2025-06-10T08:00:00")}},
		"VIE|2025-07-11": {OutboundFlights: []scraper.RawFare{fare("SKP", "VIE", 22, "2025-07-12T08:00:00")}},
	}}
	w := scraper.NewWorker("SKP", src, 8)

	first, err := w.Run(context.Background(), testDirectory(), windows)
	require.NoError(t, err)
	second, err := w.Run(context.Background(), testDirectory(), windows)
	require.NoError(t, err)

	assert.ElementsMatch(t, first.Flights(), second.Flights())
}
