// Package fares is the invocation surface of the discovery service:
// discovery runs that refresh the stored inventory and round-trip searches
// over it. It is transport-agnostic; the HTTP handlers and the CLI both
// drive the same Service.
package fares

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"farefinder/discovery-service/internal/matcher"
	"farefinder/discovery-service/internal/model"
	"farefinder/discovery-service/internal/scraper"
)

const (
	// AllDestinations expands to every airport in the directory except home.
	AllDestinations = "ALL"

	// EventFlightsRefreshed is published after a successful discovery run.
	EventFlightsRefreshed = "EVENT_FLIGHTS_REFRESHED"

	discoveryLock      = "discovery"
	defaultLockTTL     = 30 * time.Minute
	releaseLockTimeout = 5 * time.Second
)

// ErrRunInProgress is returned when another discovery run holds the lock.
var ErrRunInProgress = errors.New("discovery run already in progress")

// ValidationError is a caller input problem, reported as a request error.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// Store is the persistence the service reads from and replaces into.
type Store interface {
	ListAirports(ctx context.Context) ([]model.Airport, error)
	ListNearbyAirports(ctx context.Context) ([]model.NearbyAirport, error)
	QueryFlights(ctx context.Context, departureCode, arrivalCode string) ([]model.Flight, error)
	ListFlights(ctx context.Context) ([]model.Flight, error)
	ReplaceAllFlights(ctx context.Context, flights []model.Flight) error
}

// Discoverer fetches a fresh inventory for every airport in dir.
type Discoverer interface {
	Run(ctx context.Context, dir model.Directory, windows []model.DateWindow) (model.Inventory, error)
}

// Coordinator is the shared state between replicas: the run lock, the match
// cache and the refresh event channel.
type Coordinator interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
	GetMatches(ctx context.Context, key string) ([]model.MatchResult, int64, bool, error)
	SetMatches(ctx context.Context, gen int64, key string, results []model.MatchResult) error
	Invalidate(ctx context.Context) error
	Publish(ctx context.Context, channel string, payload any) error
}

// Options are the policy values of the service.
type Options struct {
	Home          model.Airport
	WindowCount   int
	MinSameDayGap time.Duration
	SortBy        matcher.SortKey
	LockTTL       time.Duration
	Now           func() time.Time
}

// MatchQuery is one round-trip search.
type MatchQuery struct {
	Destinations []string
	TripDays     int
	Budget       *float64
	SortBy       matcher.SortKey // empty means the service default
}

// RefreshedEvent is the EVENT_FLIGHTS_REFRESHED payload.
type RefreshedEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"runId"`
	Flights    int       `json:"flights"`
	Airports   int       `json:"airports"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Service runs discoveries and searches.
type Service struct {
	store      Store
	discoverer Discoverer
	coord      Coordinator
	opts       Options
}

// NewService returns a configured Service. coord may be nil, in which case
// runs are not serialized across processes and searches are not cached.
func NewService(store Store, discoverer Discoverer, coord Coordinator, opts Options) *Service {
	if opts.MinSameDayGap <= 0 {
		opts.MinSameDayGap = matcher.DefaultMinSameDayGap
	}
	if opts.SortBy == "" {
		opts.SortBy = matcher.SortByDepartureDate
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, discoverer: discoverer, coord: coord, opts: opts}
}

// RunDiscovery fetches a fresh inventory and swaps it into the store. When
// the run fails the stored inventory is left untouched.
func (s *Service) RunDiscovery(ctx context.Context) (model.Inventory, error) {
	runID := uuid.NewString()
	logger := slog.With("runId", runID)
	start := time.Now()

	if s.coord != nil {
		release, ok, err := s.coord.TryLock(ctx, discoveryLock, s.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, ErrRunInProgress
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseLockTimeout)
			defer cancel()
			if err := release(rctx); err != nil {
				logger.Warn("release run lock failed", "err", err)
			}
		}()
	}

	dir, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}

	windows := scraper.DateWindows(s.opts.Now(), s.opts.WindowCount)
	logger.Info("discovery run started", "airports", len(dir.Airports), "windows", len(windows))

	inv, err := s.discoverer.Run(ctx, dir, windows)
	if err != nil {
		logger.Error("discovery run failed", "err", err)
		return nil, fmt.Errorf("discovery run: %w", err)
	}

	flights := inv.Flights()
	if err := s.store.ReplaceAllFlights(ctx, flights); err != nil {
		logger.Error("replace flights failed", "err", err)
		return nil, fmt.Errorf("store inventory: %w", err)
	}

	if s.coord != nil {
		if err := s.coord.Invalidate(ctx); err != nil {
			logger.Warn("invalidate match cache failed", "err", err)
		}
		event := RefreshedEvent{
			Type:       EventFlightsRefreshed,
			RunID:      runID,
			Flights:    len(flights),
			Airports:   len(inv),
			FinishedAt: time.Now().UTC(),
		}
		if err := s.coord.Publish(ctx, EventFlightsRefreshed, event); err != nil {
			logger.Warn("publish "+EventFlightsRefreshed+" failed", "err", err)
		}
	}

	logger.Info("discovery run complete",
		"flights", len(flights), "airports", len(inv), "elapsed", time.Since(start).Round(time.Millisecond))
	return inv, nil
}

// MatchRoundTrips pairs stored outbound and return flights for every
// requested destination. Return legs also come from the destination's
// nearby airports. The combined list is re-sorted with the query's key.
func (s *Service) MatchRoundTrips(ctx context.Context, q MatchQuery) ([]model.MatchResult, error) {
	if q.TripDays < 1 {
		return nil, &ValidationError{Msg: fmt.Sprintf("duration must be at least 1, got %d", q.TripDays)}
	}
	if q.Budget != nil && (math.IsNaN(*q.Budget) || math.IsInf(*q.Budget, 0) || *q.Budget < 0) {
		return nil, &ValidationError{Msg: "budget must be a non-negative number"}
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = s.opts.SortBy
	}

	dir, err := s.directory(ctx)
	if err != nil {
		return nil, err
	}

	destinations, err := s.expandDestinations(q.Destinations, dir)
	if err != nil {
		return nil, err
	}

	// The generation is read before the flights so a run that lands
	// mid-search cannot have its inventory shadowed by these results.
	key := cacheKey(destinations, q.TripDays, q.Budget, sortBy)
	var (
		gen       int64
		cacheable bool
	)
	if s.coord != nil {
		cached, g, ok, err := s.coord.GetMatches(ctx, key)
		switch {
		case err != nil:
			slog.Warn("match cache read failed", "key", key, "err", err)
		case ok:
			return cached, nil
		default:
			gen, cacheable = g, true
		}
	}

	opts := matcher.Options{
		TripDays:      q.TripDays,
		Budget:        q.Budget,
		MinSameDayGap: s.opts.MinSameDayGap,
		Home:          s.opts.Home,
		Directory:     dir,
		SortBy:        sortBy,
	}
	home := s.opts.Home.Code

	all := make([]model.MatchResult, 0)
	for _, dest := range destinations {
		outbound, err := s.store.QueryFlights(ctx, home, dest)
		if err != nil {
			return nil, err
		}
		returns, err := s.store.QueryFlights(ctx, dest, home)
		if err != nil {
			return nil, err
		}
		for _, near := range dir.NearbyOf(dest) {
			more, err := s.store.QueryFlights(ctx, near, home)
			if err != nil {
				return nil, err
			}
			returns = append(returns, more...)
		}

		matches, err := matcher.Match(outbound, returns, opts)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", dest, err)
		}
		all = append(all, matches...)
	}
	matcher.Sort(all, sortBy)

	if cacheable {
		if err := s.coord.SetMatches(ctx, gen, key, all); err != nil {
			slog.Warn("match cache write failed", "key", key, "err", err)
		}
	}
	return all, nil
}

// Airports returns the airport directory sorted by code.
func (s *Service) Airports(ctx context.Context) ([]model.Airport, error) {
	airports, err := s.store.ListAirports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	return airports, nil
}

// Flights returns every stored flight.
func (s *Service) Flights(ctx context.Context) ([]model.Flight, error) {
	flights, err := s.store.ListFlights(ctx)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return flights, nil
}

func (s *Service) directory(ctx context.Context) (model.Directory, error) {
	airports, err := s.store.ListAirports(ctx)
	if err != nil {
		return model.Directory{}, fmt.Errorf("load airports: %w", err)
	}
	nearby, err := s.store.ListNearbyAirports(ctx)
	if err != nil {
		return model.Directory{}, fmt.Errorf("load nearby airports: %w", err)
	}
	return model.NewDirectory(airports, nearby), nil
}

// expandDestinations upper-cases, deduplicates and validates the requested
// codes. ALL anywhere in the list wins.
func (s *Service) expandDestinations(codes []string, dir model.Directory) ([]string, error) {
	var cleaned []string
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if c == AllDestinations {
			return s.allDestinations(dir), nil
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cleaned = append(cleaned, c)
	}

	if len(cleaned) == 0 {
		return nil, &ValidationError{Msg: "at least one destination code is required"}
	}
	for _, c := range cleaned {
		if _, ok := dir.Lookup(c); !ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("unknown destination code %q", c)}
		}
		if c == s.opts.Home.Code {
			return nil, &ValidationError{Msg: fmt.Sprintf("destination %s is the home airport", c)}
		}
	}
	return cleaned, nil
}

func (s *Service) allDestinations(dir model.Directory) []string {
	codes := dir.Codes()
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c != s.opts.Home.Code {
			out = append(out, c)
		}
	}
	return out
}

func cacheKey(destinations []string, tripDays int, budget *float64, sortBy matcher.SortKey) string {
	b := "-"
	if budget != nil {
		b = strconv.FormatFloat(*budget, 'f', -1, 64)
	}
	return strings.Join(destinations, ",") + "|" + strconv.Itoa(tripDays) + "|" + b + "|" + string(sortBy)
}
