package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cast"

	"farefinder/discovery-service/internal/model"
)

// ErrMalformedTimestamp means the provider sent a departure date we cannot
// parse. This is an upstream contract change, never a sold-out signal.
var ErrMalformedTimestamp = errors.New("malformed departure timestamp")

// Provider timestamps carry no zone; they are local to the departure
// station and are kept as wall-clock values.
var departureLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
}

// Normalize converts one direction of a timetable response into canonical
// flights owned by the tracked airport code. A fare listing several
// departure dates expands into one flight per date. Fares without a
// discount amount are dropped; a non-numeric amount is logged and dropped.
func Normalize(code string, direction model.Direction, raws []RawFare) ([]model.Flight, error) {
	flights := make([]model.Flight, 0, len(raws))
	for _, r := range raws {
		discount, ok, err := r.Price.value()
		if err != nil {
			slog.Warn("non-numeric fare amount dropped",
				"code", code, "direction", direction, "route", r.DepartureStation+"→"+r.ArrivalStation, "err", err)
			continue
		}
		if !ok {
			continue
		}
		original, _, err := r.OriginalPrice.value()
		if err != nil {
			slog.Warn("non-numeric original amount ignored",
				"code", code, "direction", direction, "route", r.DepartureStation+"→"+r.ArrivalStation, "err", err)
		}

		for _, raw := range r.DepartureDates {
			at, err := parseDeparture(raw)
			if err != nil {
				return nil, fmt.Errorf("%s %s→%s: %w", direction, r.DepartureStation, r.ArrivalStation, err)
			}
			flights = append(flights, model.Flight{
				Code:             code,
				Direction:        direction,
				DepartureStation: r.DepartureStation,
				ArrivalStation:   r.ArrivalStation,
				DiscountPrice:    discount,
				OriginalPrice:    original,
				DepartureAt:      at,
			})
		}
	}
	return flights, nil
}

// value returns the amount and whether it is present. Missing, null and
// zero amounts are absent. err is set when the amount is not a number.
func (a *rawAmount) value() (float64, bool, error) {
	if a == nil || a.Amount == nil {
		return 0, false, nil
	}
	v, err := cast.ToFloat64E(a.Amount)
	if err != nil {
		return 0, false, fmt.Errorf("amount %v: %w", a.Amount, err)
	}
	if v == 0 {
		return 0, false, nil
	}
	return v, true, nil
}

func parseDeparture(raw string) (time.Time, error) {
	for _, layout := range departureLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if layout == time.RFC3339 {
				// keep the station's wall clock, drop the offset
				t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}
