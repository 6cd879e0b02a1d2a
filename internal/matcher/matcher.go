// Package matcher pairs outbound and return fares into round-trip
// itineraries.
//
// A pair qualifies when the return departs exactly TripDays-1 calendar days
// after the outbound (same-day trips additionally need MinSameDayGap between
// the two departures) and, when a budget is set, the combined discount price
// does not exceed it.
package matcher

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"farefinder/discovery-service/internal/model"
)

// DefaultMinSameDayGap is the tightest same-day turnaround accepted.
const DefaultMinSameDayGap = 6 * time.Hour

var (
	// ErrUnknownAirport means a flight references a code missing from the
	// directory. The directory is expected to be complete.
	ErrUnknownAirport = errors.New("airport missing from directory")

	// ErrInvalidTripDays rejects a trip length below one calendar day.
	ErrInvalidTripDays = errors.New("trip length must be at least 1 day")
)

// SortKey selects the ordering of match results.
type SortKey string

const (
	// SortByDepartureDate orders by outbound calendar date.
	SortByDepartureDate SortKey = "date"
	// SortByPrice orders by total discount price.
	SortByPrice SortKey = "price"
)

// ParseSortKey converts a raw string to a SortKey. Empty means date.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortByDepartureDate:
		return SortByDepartureDate, nil
	case SortByPrice:
		return SortByPrice, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Options are the traveler constraints and reference data for one match.
type Options struct {
	TripDays      int
	Budget        *float64
	MinSameDayGap time.Duration
	Home          model.Airport
	Directory     model.Directory
	SortBy        SortKey
}

// Match pairs every outbound flight with every return flight that satisfies
// opts. Return flights are bucketed by calendar date so each outbound only
// visits the one bucket that can match. Results keep the pairing order and
// are then stable-sorted by opts.SortBy.
func Match(outbound, returns []model.Flight, opts Options) ([]model.MatchResult, error) {
	if opts.TripDays < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidTripDays, opts.TripDays)
	}

	byDate := make(map[civilDate][]model.Flight)
	for _, r := range returns {
		d := dateOf(r.DepartureAt)
		byDate[d] = append(byDate[d], r)
	}

	results := make([]model.MatchResult, 0)
	span := opts.TripDays - 1
	for _, ob := range outbound {
		for _, ret := range byDate[dateOf(ob.DepartureAt).addDays(span)] {
			if span == 0 && ret.DepartureAt.Sub(ob.DepartureAt) < opts.MinSameDayGap {
				continue
			}

			totalDiscount := ob.DiscountPrice + ret.DiscountPrice
			if opts.Budget != nil && totalDiscount > *opts.Budget {
				continue
			}

			outLeg, err := opts.leg(ob)
			if err != nil {
				return nil, err
			}
			retLeg, err := opts.leg(ret)
			if err != nil {
				return nil, err
			}

			results = append(results, model.MatchResult{
				Outbound:           outLeg,
				Return:             retLeg,
				TotalDiscountPrice: totalDiscount,
				TotalOriginalPrice: ob.OriginalPrice + ret.OriginalPrice,
			})
		}
	}

	Sort(results, opts.SortBy)
	return results, nil
}

// Sort orders results in place, stable.
func Sort(results []model.MatchResult, key SortKey) {
	switch key {
	case SortByPrice:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].TotalDiscountPrice < results[j].TotalDiscountPrice
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Outbound.DepartureDate < results[j].Outbound.DepartureDate
		})
	}
}

func (o Options) leg(f model.Flight) (model.Leg, error) {
	dep, err := o.label(f.DepartureStation)
	if err != nil {
		return model.Leg{}, err
	}
	arr, err := o.label(f.ArrivalStation)
	if err != nil {
		return model.Leg{}, err
	}
	return model.Leg{
		DepartureStation: dep,
		ArrivalStation:   arr,
		DiscountPrice:    f.DiscountPrice,
		OriginalPrice:    f.OriginalPrice,
		DepartureDate:    f.DepartureAt.Format("2006-01-02"),
		DepartureTime:    f.DepartureAt.Format("15:04"),
		DepartureAt:      f.DepartureAt,
	}, nil
}

// label renders "Skopje (Macedonia) - SKP" for home and "Vienna - VIE"
// for everything else.
func (o Options) label(code string) (string, error) {
	if code == o.Home.Code {
		return fmt.Sprintf("%s (%s) - %s", o.Home.Name, o.Home.Country, code), nil
	}
	a, ok := o.Directory.Lookup(code)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAirport, code)
	}
	return fmt.Sprintf("%s - %s", a.Name, code), nil
}

// civilDate is a wall-clock calendar date, independent of time zone.
type civilDate struct {
	year  int
	month time.Month
	day   int
}

func dateOf(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

func (c civilDate) addDays(n int) civilDate {
	return dateOf(time.Date(c.year, c.month, c.day+n, 0, 0, 0, 0, time.UTC))
}
