package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"farefinder/discovery-service/internal/model"
)

// FareSource is the upstream side of a discovery run. *TimetableFetcher
// satisfies it.
type FareSource interface {
	DiscoverBaseURL(ctx context.Context) (string, error)
	FetchTimetable(ctx context.Context, baseURL, destination string, window model.DateWindow) Timetable
}

// Worker runs the fetch-and-normalise fan-out for a whole discovery run.
// Every (airport × window) pair is one unit of work; the number of upstream
// calls in flight at any moment is capped by the shared semaphore.
type Worker struct {
	home   string
	source FareSource
	sem    *semaphore.Weighted
}

// NewWorker constructs a Worker. maxConcurrent below 1 is treated as 1.
func NewWorker(home string, source FareSource, maxConcurrent int) *Worker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Worker{
		home:   home,
		source: source,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Run builds a fresh Inventory for every airport in dir. It resolves the
// backend host once before any fare query; that failure, a normaliser
// contract violation, or cancellation of ctx fails the run. A window whose
// fetch degraded to an empty timetable simply contributes nothing.
func (w *Worker) Run(ctx context.Context, dir model.Directory, windows []model.DateWindow) (model.Inventory, error) {
	baseURL, err := w.source.DiscoverBaseURL(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(dir.Airports))
	for _, code := range dir.Codes() {
		if code != w.home {
			codes = append(codes, code)
		}
	}
	log.Printf("[worker] Starting discovery: airports=%d windows=%d backend=%s", len(codes), len(windows), baseURL)

	var (
		mu  sync.Mutex
		inv = make(model.Inventory, len(codes))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			ai, err := w.fetchAirport(gctx, baseURL, code, windows)
			if err != nil {
				return fmt.Errorf("airport %s: %w", code, err)
			}
			mu.Lock()
			inv[code] = ai
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Cancelled fetches degrade to empty timetables, so a cancelled run
	// would otherwise look like a complete but empty one.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discovery cancelled: %w", err)
	}

	var outbound, inbound int
	for _, ai := range inv {
		outbound += len(ai.Outbound)
		inbound += len(ai.Return)
	}
	log.Printf("[worker] Discovery done: outbound=%d return=%d", outbound, inbound)
	return inv, nil
}

// fetchAirport fans out over windows for one airport and concatenates the
// normalised results in completion order.
func (w *Worker) fetchAirport(ctx context.Context, baseURL, code string, windows []model.DateWindow) (model.AirportInventory, error) {
	var (
		mu sync.Mutex
		ai = model.AirportInventory{Outbound: []model.Flight{}, Return: []model.Flight{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, window := range windows {
		window := window
		g.Go(func() error {
			if err := w.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			tt := w.source.FetchTimetable(gctx, baseURL, code, window)
			w.sem.Release(1)

			outbound, err := Normalize(code, model.DirectionOutbound, tt.OutboundFlights)
			if err != nil {
				return err
			}
			inbound, err := Normalize(code, model.DirectionReturn, tt.ReturnFlights)
			if err != nil {
				return err
			}

			mu.Lock()
			ai.Outbound = append(ai.Outbound, outbound...)
			ai.Return = append(ai.Return, inbound...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AirportInventory{}, err
	}
	return ai, nil
}
