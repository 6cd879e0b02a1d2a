// Package scraper fetches timetable fares from the upstream provider and
// normalises them into the flight inventory.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"farefinder/discovery-service/internal/model"
)

const (
	dateLayout       = "2006-01-02"
	discoveryTimeout = 15 * time.Second
	maxBodySnippet   = 200
)

// ErrBackendDiscovery is returned when the backend host cannot be resolved.
// Without it no fare query can be issued, so the whole run fails.
var ErrBackendDiscovery = errors.New("backend host discovery failed")

// TimetableFetcher fetches timetable fares for the home airport.
// FetchTimetable never fails: any transport or decoding problem yields an
// empty Timetable and a logged warning.
type TimetableFetcher struct {
	Home           string
	BuildNumberURL string
	TimetablePath  string
	Timeout        time.Duration // per FetchTimetable call
	client         *http.Client
}

// NewTimetableFetcher constructs a fetcher with a shared HTTP client.
func NewTimetableFetcher(home, buildNumberURL, timetablePath string, timeout time.Duration) *TimetableFetcher {
	return &TimetableFetcher{
		Home:           home,
		BuildNumberURL: buildNumberURL,
		TimetablePath:  timetablePath,
		Timeout:        timeout,
		client:         &http.Client{},
	}
}

// Timetable is the provider's answer for one destination and window.
// The zero value is the empty/unavailable result.
type Timetable struct {
	OutboundFlights []RawFare `json:"outboundFlights"`
	ReturnFlights   []RawFare `json:"returnFlights"`
}

// Empty reports whether the timetable carries no fares at all.
func (t Timetable) Empty() bool {
	return len(t.OutboundFlights) == 0 && len(t.ReturnFlights) == 0
}

// RawFare mirrors a single provider fare.
type RawFare struct {
	DepartureStation string     `json:"departureStation"`
	ArrivalStation   string     `json:"arrivalStation"`
	Price            *rawAmount `json:"price"`
	OriginalPrice    *rawAmount `json:"originalPrice"`
	DepartureDates   []string   `json:"departureDates"`
}

// rawAmount keeps the amount untyped: the provider sends numbers, numeric
// strings or null depending on availability.
type rawAmount struct {
	Amount any `json:"amount"`
}

type timetableRequest struct {
	AdultCount  int                `json:"adultCount"`
	ChildCount  int                `json:"childCount"`
	InfantCount int                `json:"infantCount"`
	PriceType   string             `json:"priceType"`
	FlightList  []timetableSegment `json:"flightList"`
}

type timetableSegment struct {
	DepartureStation string `json:"departureStation"`
	ArrivalStation   string `json:"arrivalStation"`
	From             string `json:"from"`
	To               string `json:"to"`
}

// DiscoverBaseURL resolves the timetable endpoint for this run. The build
// number resource answers with plain text whose second token is the
// backend host.
func (f *TimetableFetcher) DiscoverBaseURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BuildNumberURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendDiscovery, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http GET: %v", ErrBackendDiscovery, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrBackendDiscovery, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: build number returned %d", ErrBackendDiscovery, resp.StatusCode)
	}

	tokens := strings.Fields(string(body))
	if len(tokens) < 2 {
		return "", fmt.Errorf("%w: unexpected build number body %q", ErrBackendDiscovery, snippet(body))
	}

	return strings.TrimRight(tokens[1], "/") + f.TimetablePath, nil
}

// FetchTimetable queries both directions between home and destination for
// one window. Exactly one POST is issued.
func (f *TimetableFetcher) FetchTimetable(ctx context.Context, baseURL, destination string, window model.DateWindow) Timetable {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	from, to := window.Start.Format(dateLayout), window.End.Format(dateLayout)
	logger := slog.With("destination", destination, "from", from, "to", to)

	payload, err := json.Marshal(timetableRequest{
		AdultCount: 1,
		PriceType:  "regular",
		FlightList: []timetableSegment{
			{DepartureStation: f.Home, ArrivalStation: destination, From: from, To: to},
			{DepartureStation: destination, ArrivalStation: f.Home, From: from, To: to},
		},
	})
	if err != nil {
		logger.Warn("timetable request encode failed", "err", err)
		return Timetable{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		logger.Warn("timetable request build failed", "err", err)
		return Timetable{}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		logger.Warn("timetable request failed", "err", err)
		return Timetable{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("timetable body read failed", "err", err)
		return Timetable{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("timetable non-success response", "status", resp.StatusCode, "body", snippet(body))
		return Timetable{}
	}

	var tt Timetable
	if err := json.Unmarshal(body, &tt); err != nil {
		logger.Warn("timetable non-JSON response", "status", resp.StatusCode, "body", snippet(body), "err", err)
		return Timetable{}
	}
	return tt
}

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet]) + "..."
	}
	return string(body)
}
