// Package seed ships the default airport directory: airports.csv for the
// airports and nearby.yaml for the return-leg adjacency.
package seed

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/jszwec/csvutil"
	"gopkg.in/yaml.v3"

	"farefinder/discovery-service/internal/model"
)

//go:embed airports.csv
var airportsCSV []byte

//go:embed nearby.yaml
var nearbyYAML []byte

// Airports decodes the embedded airport list.
func Airports() ([]model.Airport, error) {
	return ParseAirports(airportsCSV)
}

// Nearby decodes the embedded adjacency list.
func Nearby() ([]model.NearbyAirport, error) {
	return ParseNearby(nearbyYAML)
}

// ParseAirports decodes a code,name,country CSV with a header row. Codes are
// upper-cased and must be unique.
func ParseAirports(data []byte) ([]model.Airport, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("airports csv header: %w", err)
	}

	var airports []model.Airport
	if err := dec.Decode(&airports); err != nil {
		return nil, fmt.Errorf("airports csv decode: %w", err)
	}

	seen := make(map[string]struct{}, len(airports))
	for i := range airports {
		a := &airports[i]
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		if a.Code == "" || a.Name == "" {
			return nil, fmt.Errorf("airports csv row %d: code and name are required", i+2)
		}
		if _, dup := seen[a.Code]; dup {
			return nil, fmt.Errorf("airports csv row %d: duplicate code %s", i+2, a.Code)
		}
		seen[a.Code] = struct{}{}
	}
	return airports, nil
}

// ParseNearby decodes a YAML mapping of code to nearby codes. Pairs come out
// sorted by airport so the result is stable across runs.
func ParseNearby(data []byte) ([]model.NearbyAirport, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("nearby yaml: %w", err)
	}

	codes := make([]string, 0, len(raw))
	for code := range raw {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var pairs []model.NearbyAirport
	for _, code := range codes {
		for _, n := range raw[code] {
			pairs = append(pairs, model.NearbyAirport{
				AirportCode: strings.ToUpper(code),
				NearbyCode:  strings.ToUpper(n),
			})
		}
	}
	return pairs, nil
}

// Validate reports nearby pairs that point at airports missing from the list.
func Validate(airports []model.Airport, nearby []model.NearbyAirport) error {
	known := make(map[string]struct{}, len(airports))
	for _, a := range airports {
		known[a.Code] = struct{}{}
	}

	var missing []string
	for _, n := range nearby {
		for _, code := range []string{n.AirportCode, n.NearbyCode} {
			if _, ok := known[code]; !ok {
				missing = append(missing, code)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("nearby airports reference unknown codes: %s", strings.Join(missing, ", "))
	}
	return nil
}
