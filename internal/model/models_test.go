package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"farefinder/discovery-service/internal/model"
)

func TestNewDirectory_NearbySetSemantics(t *testing.T) {
	dir := model.NewDirectory(
		[]model.Airport{
			{Code: "VIE", Name: "Vienna", Country: "Austria"},
			{Code: "BTS", Name: "Bratislava", Country: "Slovakia"},
		},
		[]model.NearbyAirport{
			{AirportCode: "VIE", NearbyCode: "BTS"},
			{AirportCode: "VIE", NearbyCode: "BTS"},
			{AirportCode: "VIE", NearbyCode: "VIE"},
		},
	)

	assert.Equal(t, []string{"BTS"}, dir.NearbyOf("VIE"))
	assert.Empty(t, dir.NearbyOf("BTS"))
	assert.Equal(t, []string{"BTS", "VIE"}, dir.Codes())

	a, ok := dir.Lookup("VIE")
	assert.True(t, ok)
	assert.Equal(t, "Vienna", a.Name)
	_, ok = dir.Lookup("XXX")
	assert.False(t, ok)
}

func TestInventory_Flights(t *testing.T) {
	at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	inv := model.Inventory{
		"VIE": {
			Outbound: []model.Flight{{Code: "VIE", DepartureStation: "SKP", ArrivalStation: "VIE", DiscountPrice: 20, DepartureAt: at}},
			Return:   []model.Flight{{Code: "VIE", DepartureStation: "VIE", ArrivalStation: "SKP", DiscountPrice: 25, DepartureAt: at}},
		},
		"BER": {
			Outbound: []model.Flight{{Code: "BER", DepartureStation: "SKP", ArrivalStation: "BER", DiscountPrice: 30, DepartureAt: at}},
		},
	}

	flights := inv.Flights()
	assert.Len(t, flights, 3)
	assert.Equal(t, "BER", flights[0].Code)
	assert.Equal(t, "VIE", flights[1].Code)
	assert.Equal(t, "VIE", flights[2].DepartureStation)
}
