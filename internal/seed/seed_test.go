package seed_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farefinder/discovery-service/internal/model"
	"farefinder/discovery-service/internal/seed"
)

func TestEmbeddedDirectoryIsConsistent(t *testing.T) {
	airports, err := seed.Airports()
	require.NoError(t, err)
	require.NotEmpty(t, airports)

	nearby, err := seed.Nearby()
	require.NoError(t, err)
	require.NotEmpty(t, nearby)

	require.NoError(t, seed.Validate(airports, nearby))

	dir := model.NewDirectory(airports, nearby)
	home, ok := dir.Lookup("SKP")
	require.True(t, ok)
	assert.Equal(t, "Skopje", home.Name)
	assert.Equal(t, "Macedonia", home.Country)
	assert.Contains(t, dir.NearbyOf("VIE"), "BTS")
}

func TestParseAirports(t *testing.T) {
	airports, err := seed.ParseAirports([]byte("code,name,country\nvie,Vienna,Austria\nBTS,Bratislava,Slovakia\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.Airport{
		{Code: "VIE", Name: "Vienna", Country: "Austria"},
		{Code: "BTS", Name: "Bratislava", Country: "Slovakia"},
	}, airports)
}

func TestParseAirports_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate code": "code,name,country\nVIE,Vienna,Austria\nVIE,Wien,Austria\n",
		"missing name":   "code,name,country\nVIE,,Austria\n",
		"no header":      "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := seed.ParseAirports([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseNearby_SortedPairs(t *testing.T) {
	pairs, err := seed.ParseNearby([]byte("vie: [bts, BUD]\nBGY: [MXP]\n"))
	require.NoError(t, err)
	assert.Equal(t, []model.NearbyAirport{
		{AirportCode: "BGY", NearbyCode: "MXP"},
		{AirportCode: "VIE", NearbyCode: "BTS"},
		{AirportCode: "VIE", NearbyCode: "BUD"},
	}, pairs)
}

func TestParseNearby_Malformed(t *testing.T) {
	_, err := seed.ParseNearby([]byte("VIE: {BTS: 1"))
	assert.Error(t, err)
}

func TestValidate_UnknownCode(t *testing.T) {
	err := seed.Validate(
		[]model.Airport{{Code: "VIE", Name: "Vienna"}},
		[]model.NearbyAirport{{AirportCode: "VIE", NearbyCode: "XXX"}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XXX")
}
