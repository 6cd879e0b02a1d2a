// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the discovery service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	HomeCode    string
	HomeName    string
	HomeCountry string

	BuildNumberURL string
	TimetablePath  string

	WindowCount          int
	MaxConcurrentFetches int
	FetchTimeout         time.Duration
	MinSameDayGap        time.Duration

	RefreshCron    string // robfig/cron spec, e.g. "0 0 * * *"
	SearchCacheTTL time.Duration
	SortBy         string // "date" or "price"
	AllowedOrigins []string
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	windows, err := positiveInt("WINDOW_COUNT", 8)
	if err != nil {
		return nil, err
	}
	maxFetches, err := positiveInt("MAX_CONCURRENT_FETCHES", 8)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := positiveDuration("FETCH_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	minGap, err := positiveDuration("MIN_SAME_DAY_GAP", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := positiveDuration("SEARCH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	sortBy := strings.ToLower(envOr("SORT_BY", "date"))
	if sortBy != "date" && sortBy != "price" {
		return nil, fmt.Errorf("SORT_BY must be \"date\" or \"price\", got %q", sortBy)
	}

	return &Config{
		Port:                 envOr("FAREFINDER_PORT", "8000"),
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		HomeCode:             strings.ToUpper(envOr("HOME_AIRPORT_CODE", "SKP")),
		HomeName:             envOr("HOME_AIRPORT_NAME", "Skopje"),
		HomeCountry:          envOr("HOME_AIRPORT_COUNTRY", "Macedonia"),
		BuildNumberURL:       envOr("BUILD_NUMBER_URL", "https://wizzair.com/buildnumber"),
		TimetablePath:        envOr("TIMETABLE_PATH", "/Api/search/timetable"),
		WindowCount:          windows,
		MaxConcurrentFetches: maxFetches,
		FetchTimeout:         fetchTimeout,
		MinSameDayGap:        minGap,
		RefreshCron:          envOr("REFRESH_CRON", "0 0 * * *"),
		SearchCacheTTL:       cacheTTL,
		SortBy:               sortBy,
		AllowedOrigins:       splitList(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:8080")),
	}, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func positiveDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
