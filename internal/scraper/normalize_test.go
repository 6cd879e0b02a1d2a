package scraper_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farefinder/discovery-service/internal/model"
	"farefinder/discovery-service/internal/scraper"
)

func decodeFares(t *testing.T, body string) []scraper.RawFare {
	t.Helper()
	var fares []scraper.RawFare
	require.NoError(t, json.Unmarshal([]byte(body), &fares))
	return fares
}

func TestNormalize_ExpandsDepartureDates(t *testing.T) {
	fares := decodeFares(t, `[{
		"departureStation": "SKP", "arrivalStation": "VIE",
		"price": {"amount": 19.99}, "originalPrice": {"amount": 49.99},
		"departureDates": ["2025-06-10T08:00:00", "2025-06-12T18:30:00"]
	}]`)

	flights, err := scraper.Normalize("VIE", model.DirectionOutbound, fares)
	require.NoError(t, err)
	require.Len(t, flights, 2)

	for _, f := range flights {
		assert.Equal(t, "VIE", f.Code)
		assert.Equal(t, model.DirectionOutbound, f.Direction)
		assert.Equal(t, "SKP", f.DepartureStation)
		assert.Equal(t, "VIE", f.ArrivalStation)
		assert.Equal(t, 19.99, f.DiscountPrice)
		assert.Equal(t, 49.99, f.OriginalPrice)
	}
	assert.Equal(t, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC), flights[0].DepartureAt)
	assert.Equal(t, time.Date(2025, 6, 12, 18, 30, 0, 0, time.UTC), flights[1].DepartureAt)
}

func TestNormalize_DropsMissingDiscount(t *testing.T) {
	fares := decodeFares(t, `[
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": null,
		 "originalPrice": {"amount": 30}, "departureDates": ["2025-06-10T08:00:00"]},
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": {"amount": null},
		 "originalPrice": {"amount": 30}, "departureDates": ["2025-06-11T08:00:00"]},
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": {"amount": 0},
		 "originalPrice": {"amount": 30}, "departureDates": ["2025-06-12T08:00:00"]},
		{"departureStation": "VIE", "arrivalStation": "SKP",
		 "originalPrice": {"amount": 30}, "departureDates": ["2025-06-13T08:00:00"]},
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": {"amount": "24.50"},
		 "departureDates": ["2025-06-14T08:00:00"]}
	]`)

	flights, err := scraper.Normalize("VIE", model.DirectionReturn, fares)
	require.NoError(t, err)
	require.Len(t, flights, 1)

	assert.Equal(t, 24.50, flights[0].DiscountPrice)
	assert.Zero(t, flights[0].OriginalPrice)
}

func TestNormalize_AmountEdgeCases(t *testing.T) {
	fares := decodeFares(t, `[
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": {"amount": "n/a"},
		 "originalPrice": {"amount": 30}, "departureDates": ["2025-06-10T08:00:00"]},
		{"departureStation": "VIE", "arrivalStation": "SKP", "price": {"amount": -5},
		 "originalPrice": {"amount": "free"}, "departureDates": ["2025-06-11T08:00:00"]}
	]`)

	flights, err := scraper.Normalize("VIE", model.DirectionReturn, fares)
	require.NoError(t, err)
	require.Len(t, flights, 1, "non-numeric discount is dropped, a negative one is kept")
	assert.Equal(t, -5.0, flights[0].DiscountPrice)
	assert.Zero(t, flights[0].OriginalPrice)
}

func TestNormalize_MalformedTimestampFailsLoudly(t *testing.T) {
	fares := decodeFares(t, `[{
		"departureStation": "SKP", "arrivalStation": "VIE",
		"price": {"amount": 19.99}, "originalPrice": {"amount": 49.99},
		"departureDates": ["10/06/2025 08:00"]
	}]`)

	flights, err := scraper.Normalize("VIE", model.DirectionOutbound, fares)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scraper.ErrMalformedTimestamp))
	assert.Nil(t, flights)
}

func TestNormalize_SoldOutSkipsTimestampCheck(t *testing.T) {
	fares := decodeFares(t, `[{
		"departureStation": "SKP", "arrivalStation": "VIE",
		"price": null, "departureDates": ["not-a-date"]
	}]`)

	flights, err := scraper.Normalize("VIE", model.DirectionOutbound, fares)
	require.NoError(t, err)
	assert.Empty(t, flights)
}

func TestNormalize_AcceptedLayouts(t *testing.T) {
	want := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2025-06-10T08:00:00", "2025-06-10T08:00", "2025-06-10T08:00:00+02:00"} {
		fares := []scraper.RawFare{}
		body := `[{"departureStation":"SKP","arrivalStation":"VIE","price":{"amount":10},"departureDates":["` + raw + `"]}]`
		require.NoError(t, json.Unmarshal([]byte(body), &fares))

		flights, err := scraper.Normalize("VIE", model.DirectionOutbound, fares)
		require.NoError(t, err, raw)
		require.Len(t, flights, 1)
		assert.Equal(t, want, flights[0].DepartureAt, raw)
	}
}

func TestNormalize_Empty(t *testing.T) {
	flights, err := scraper.Normalize("VIE", model.DirectionOutbound, nil)
	require.NoError(t, err)
	assert.Empty(t, flights)
}
