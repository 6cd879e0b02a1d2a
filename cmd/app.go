package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"farefinder/discovery-service/internal/cache"
	"farefinder/discovery-service/internal/config"
	"farefinder/discovery-service/internal/db"
	"farefinder/discovery-service/internal/fares"
	"farefinder/discovery-service/internal/matcher"
	"farefinder/discovery-service/internal/model"
	"farefinder/discovery-service/internal/scraper"
	"farefinder/discovery-service/internal/seed"
	"farefinder/discovery-service/internal/store"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	rdb  *redis.Client
	svc  *fares.Service
}

// bootstrap loads config, connects to PostgreSQL and Redis, makes sure the
// schema and airport directory exist and builds the fares service.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	a := &app{cfg: cfg, pool: pool, rdb: rdb}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := seedDirectory(ctx, st); err != nil {
		a.close()
		return nil, err
	}

	fetcher := scraper.NewTimetableFetcher(cfg.HomeCode, cfg.BuildNumberURL, cfg.TimetablePath, cfg.FetchTimeout)
	worker := scraper.NewWorker(cfg.HomeCode, fetcher, cfg.MaxConcurrentFetches)

	sortBy, err := matcher.ParseSortKey(cfg.SortBy)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("config: %w", err)
	}

	a.svc = fares.NewService(st, worker, cache.NewRedis(rdb, cfg.SearchCacheTTL), fares.Options{
		Home:          model.Airport{Code: cfg.HomeCode, Name: cfg.HomeName, Country: cfg.HomeCountry},
		WindowCount:   cfg.WindowCount,
		MinSameDayGap: cfg.MinSameDayGap,
		SortBy:        sortBy,
	})
	return a, nil
}

func (a *app) close() {
	if err := a.rdb.Close(); err != nil {
		log.Printf("[farefinder] Redis close: %v", err)
	}
	a.pool.Close()
}

// seedDirectory loads the embedded airports into an empty store.
func seedDirectory(ctx context.Context, st *store.Postgres) error {
	airports, err := seed.Airports()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	nearby, err := seed.Nearby()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := seed.Validate(airports, nearby); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	seeded, err := st.SeedAirports(ctx, airports, nearby)
	if err != nil {
		return err
	}
	if !seeded {
		log.Println("[farefinder] Airport directory already present")
	}
	return nil
}
