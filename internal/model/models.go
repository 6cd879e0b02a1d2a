// Package model defines shared data structures for the discovery service.
package model

import (
	"sort"
	"time"
)

// Airport mirrors the airports table row. Static reference data.
type Airport struct {
	Code    string `json:"code" csv:"code"`
	Name    string `json:"name" csv:"name"`
	Country string `json:"country" csv:"country"`
}

// NearbyAirport is a directed adjacency used to widen return-leg searches.
type NearbyAirport struct {
	AirportCode string `json:"airportCode"`
	NearbyCode  string `json:"nearbyCode"`
}

// DateWindow is one provider query range. Both ends are calendar dates.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Direction tells which half of a round trip a flight belongs to.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionReturn   Direction = "return"
)

// Flight is a normalised one-way fare. It is the unit stored in the flights
// table and fed to the matcher.
type Flight struct {
	Code             string    `json:"code"`
	Direction        Direction `json:"direction"`
	DepartureStation string    `json:"departureStation"`
	ArrivalStation   string    `json:"arrivalStation"`
	DiscountPrice    float64   `json:"discountPrice"`
	OriginalPrice    float64   `json:"originalPrice"`
	DepartureAt      time.Time `json:"departureAt"`
}

// AirportInventory holds every fare fetched for one tracked airport.
type AirportInventory struct {
	Outbound []Flight `json:"outbound"`
	Return   []Flight `json:"return"`
}

// Inventory maps an airport code to its fares for one discovery run.
type Inventory map[string]AirportInventory

// Flights flattens the inventory into rows ready for replacement.
func (inv Inventory) Flights() []Flight {
	codes := make([]string, 0, len(inv))
	total := 0
	for code, ai := range inv {
		codes = append(codes, code)
		total += len(ai.Outbound) + len(ai.Return)
	}
	sort.Strings(codes)

	flights := make([]Flight, 0, total)
	for _, code := range codes {
		flights = append(flights, inv[code].Outbound...)
		flights = append(flights, inv[code].Return...)
	}
	return flights
}

// Leg is one half of a MatchResult, with stations expanded to display labels.
type Leg struct {
	DepartureStation string    `json:"departureStation"`
	ArrivalStation   string    `json:"arrivalStation"`
	DiscountPrice    float64   `json:"discountPrice"`
	OriginalPrice    float64   `json:"originalPrice"`
	DepartureDate    string    `json:"departureDate"`
	DepartureTime    string    `json:"departureTime"`
	DepartureAt      time.Time `json:"departureAt"`
}

// MatchResult is a computed outbound/return pairing. Never persisted.
type MatchResult struct {
	Outbound           Leg     `json:"outbound"`
	Return             Leg     `json:"return"`
	TotalDiscountPrice float64 `json:"totalDiscountPrice"`
	TotalOriginalPrice float64 `json:"totalOriginalPrice"`
}

// Directory is a read-only snapshot of the airport reference data.
type Directory struct {
	Airports map[string]Airport
	Nearby   map[string][]string
}

// NewDirectory builds a Directory from the two store reads. Adjacency keeps
// set semantics: duplicate pairs collapse and insertion order is preserved.
func NewDirectory(airports []Airport, nearby []NearbyAirport) Directory {
	dir := Directory{
		Airports: make(map[string]Airport, len(airports)),
		Nearby:   make(map[string][]string),
	}
	for _, a := range airports {
		dir.Airports[a.Code] = a
	}

	seen := make(map[NearbyAirport]struct{}, len(nearby))
	for _, n := range nearby {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		dir.Nearby[n.AirportCode] = append(dir.Nearby[n.AirportCode], n.NearbyCode)
	}
	return dir
}

// Lookup returns the airport registered under code.
func (d Directory) Lookup(code string) (Airport, bool) {
	a, ok := d.Airports[code]
	return a, ok
}

// Codes returns every airport code, sorted.
func (d Directory) Codes() []string {
	codes := make([]string, 0, len(d.Airports))
	for code := range d.Airports {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// List returns every airport sorted by code.
func (d Directory) List() []Airport {
	out := make([]Airport, 0, len(d.Airports))
	for _, code := range d.Codes() {
		out = append(out, d.Airports[code])
	}
	return out
}

// NearbyOf returns the airports adjacent to code, excluding code itself.
func (d Directory) NearbyOf(code string) []string {
	var out []string
	for _, n := range d.Nearby[code] {
		if n == code {
			continue
		}
		out = append(out, n)
	}
	return out
}
