// Package store persists the airport directory and the flight inventory in
// PostgreSQL.
//
// The flights table is never updated in place: every discovery run swaps the
// whole inventory with ReplaceAllFlights inside one transaction, so readers
// see either the previous run or the new one.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farefinder/discovery-service/internal/model"
)

//go:embed schema.sql
var schema string

var flightColumns = []string{
	"code", "direction", "departure_station", "arrival_station",
	"discount_price", "original_price", "departure_at",
}

// Postgres implements the fares store on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// New returns a Postgres store backed by pool.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates missing tables and indexes. Safe to run on every start.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensureSchema: %w", err)
	}
	return nil
}

// ListAirports returns the airport directory ordered by code.
func (p *Postgres) ListAirports(ctx context.Context) ([]model.Airport, error) {
	rows, err := p.pool.Query(ctx, `SELECT code, name, country FROM airports ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("listAirports query: %w", err)
	}
	defer rows.Close()

	airports := make([]model.Airport, 0)
	for rows.Next() {
		var a model.Airport
		if err := rows.Scan(&a.Code, &a.Name, &a.Country); err != nil {
			return nil, fmt.Errorf("listAirports scan: %w", err)
		}
		airports = append(airports, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listAirports rows: %w", err)
	}
	return airports, nil
}

// ListNearbyAirports returns every adjacency pair.
func (p *Postgres) ListNearbyAirports(ctx context.Context) ([]model.NearbyAirport, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT airport_code, nearby_code FROM nearby_airports ORDER BY airport_code, nearby_code`)
	if err != nil {
		return nil, fmt.Errorf("listNearbyAirports query: %w", err)
	}
	defer rows.Close()

	pairs := make([]model.NearbyAirport, 0)
	for rows.Next() {
		var n model.NearbyAirport
		if err := rows.Scan(&n.AirportCode, &n.NearbyCode); err != nil {
			return nil, fmt.Errorf("listNearbyAirports scan: %w", err)
		}
		pairs = append(pairs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listNearbyAirports rows: %w", err)
	}
	return pairs, nil
}

// QueryFlights returns the stored flights from departureCode to arrivalCode
// in insertion order.
func (p *Postgres) QueryFlights(ctx context.Context, departureCode, arrivalCode string) ([]model.Flight, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT code, direction, departure_station, arrival_station,
		        discount_price, original_price, departure_at
		 FROM flights
		 WHERE departure_station = $1 AND arrival_station = $2
		 ORDER BY id`,
		departureCode, arrivalCode,
	)
	if err != nil {
		return nil, fmt.Errorf("queryFlights %s→%s: %w", departureCode, arrivalCode, err)
	}
	return collectFlights(rows)
}

// ListFlights returns the whole inventory in insertion order.
func (p *Postgres) ListFlights(ctx context.Context) ([]model.Flight, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT code, direction, departure_station, arrival_station,
		        discount_price, original_price, departure_at
		 FROM flights
		 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listFlights query: %w", err)
	}
	return collectFlights(rows)
}

// ReplaceAllFlights deletes the current inventory and bulk-loads flights in
// the same transaction. On any error the previous inventory is kept.
func (p *Postgres) ReplaceAllFlights(ctx context.Context, flights []model.Flight) error {
	start := time.Now()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replaceAllFlights begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `DELETE FROM flights`)
	if err != nil {
		return fmt.Errorf("replaceAllFlights delete: %w", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"flights"}, flightColumns, pgx.CopyFromRows(flightRows(flights)))
	if err != nil {
		return fmt.Errorf("replaceAllFlights copy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("replaceAllFlights commit: %w", err)
	}

	log.Printf("[store] Replaced %d flight(s) with %d in %s", tag.RowsAffected(), n, time.Since(start).Round(time.Millisecond))
	return nil
}

// SeedAirports loads the directory into empty tables. Populated tables are
// left alone; the return value reports whether anything was written.
func (p *Postgres) SeedAirports(ctx context.Context, airports []model.Airport, nearby []model.NearbyAirport) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("seedAirports begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM airports`).Scan(&existing); err != nil {
		return false, fmt.Errorf("seedAirports count: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	airportRows := make([][]any, 0, len(airports))
	for _, a := range airports {
		airportRows = append(airportRows, []any{a.Code, a.Name, a.Country})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"airports"}, []string{"code", "name", "country"},
		pgx.CopyFromRows(airportRows)); err != nil {
		return false, fmt.Errorf("seedAirports copy airports: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"nearby_airports"}, []string{"airport_code", "nearby_code"},
		pgx.CopyFromRows(nearbyRows(nearby))); err != nil {
		return false, fmt.Errorf("seedAirports copy nearby: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("seedAirports commit: %w", err)
	}

	log.Printf("[store] Seeded %d airport(s) and %d nearby pair(s)", len(airports), len(nearby))
	return true, nil
}

func collectFlights(rows pgx.Rows) ([]model.Flight, error) {
	defer rows.Close()

	flights := make([]model.Flight, 0)
	for rows.Next() {
		var (
			f         model.Flight
			direction string
		)
		if err := rows.Scan(
			&f.Code, &direction, &f.DepartureStation, &f.ArrivalStation,
			&f.DiscountPrice, &f.OriginalPrice, &f.DepartureAt,
		); err != nil {
			return nil, fmt.Errorf("flights scan: %w", err)
		}
		f.Direction = model.Direction(direction)
		flights = append(flights, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("flights rows: %w", err)
	}
	return flights, nil
}

// flightRows lays flights out in flightColumns order for COPY.
func flightRows(flights []model.Flight) [][]any {
	out := make([][]any, 0, len(flights))
	for _, f := range flights {
		out = append(out, []any{
			f.Code, string(f.Direction), f.DepartureStation, f.ArrivalStation,
			f.DiscountPrice, f.OriginalPrice, f.DepartureAt,
		})
	}
	return out
}

// nearbyRows drops duplicate pairs so COPY does not trip the primary key.
func nearbyRows(nearby []model.NearbyAirport) [][]any {
	seen := make(map[model.NearbyAirport]struct{}, len(nearby))
	out := make([][]any, 0, len(nearby))
	for _, n := range nearby {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, []any{n.AirportCode, n.NearbyCode})
	}
	return out
}
