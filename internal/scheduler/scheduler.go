// Package scheduler wires up the cron job that periodically refreshes the
// flight inventory.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"farefinder/discovery-service/internal/model"
)

// Runner performs one discovery run. *fares.Service satisfies it.
type Runner interface {
	RunDiscovery(ctx context.Context) (model.Inventory, error)
}

// Scheduler wraps robfig/cron and manages the refresh loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "0 0 * * *"
	wg     sync.WaitGroup
}

// New creates a Scheduler that fires on spec. Overlapping ticks are skipped
// rather than queued.
func New(runner Runner, spec string) *Scheduler {
	logger := cron.DefaultLogger
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.SkipIfStillRunning(logger)),
		),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the job and starts the scheduler. When runNow is set one
// refresh also runs immediately so the inventory is populated without
// waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context, runNow bool) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.refresh(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started, spec: %s", s.spec)

	if runNow {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.refresh(ctx)
		}()
	}

	return nil
}

// Stop halts the scheduler and waits for any running refresh to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log.Println("[scheduler] Refresh cycle started")

	inv, err := s.runner.RunDiscovery(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("[scheduler] Refresh cancelled")
			return
		}
		log.Printf("[scheduler] Refresh failed: %v", err)
		return
	}

	log.Printf("[scheduler] Refresh cycle complete: %d airport(s), %d flight(s)", len(inv), len(inv.Flights()))
}
