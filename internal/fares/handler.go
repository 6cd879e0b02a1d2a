package fares

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"farefinder/discovery-service/internal/matcher"
	"farefinder/discovery-service/internal/scraper"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

type refreshResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Flights  int    `json:"flights"`
	Airports int    `json:"airports"`
}

// Handler exposes a Service over HTTP.
type Handler struct {
	svc     *Service
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service, version string) *Handler {
	return &Handler{svc: svc, version: version}
}

// RegisterRoutes mounts all routes on mux:
//
//	GET  /health            → liveness
//	POST /refresh-flights   → run discovery now
//	GET  /airports          → airport directory
//	GET  /flights           → stored inventory
//	GET  /search-flights    → round-trip matches
//	     ?destination_codes=VIE,BTS|ALL&duration=3&budget=120&sort=date|price
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/refresh-flights", h.handleRefresh)
	mux.HandleFunc("/airports", h.handleAirports)
	mux.HandleFunc("/flights", h.handleFlights)
	mux.HandleFunc("/search-flights", h.handleSearch)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, healthResponse{Status: "ok", Service: "farefinder", Version: h.version})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	inv, err := h.svc.RunDiscovery(r.Context())
	switch {
	case errors.Is(err, ErrRunInProgress):
		jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, scraper.ErrBackendDiscovery), errors.Is(err, scraper.ErrMalformedTimestamp):
		log.Printf("[api] refresh-flights upstream failure: %v", err)
		jsonError(w, "fare provider failed", http.StatusBadGateway)
		return
	case err != nil:
		log.Printf("[api] refresh-flights failed: %v", err)
		jsonError(w, "flight refresh failed", http.StatusInternalServerError)
		return
	}

	jsonOK(w, refreshResponse{
		Status:   "success",
		Message:  "Flights refreshed and saved to DB",
		Flights:  len(inv.Flights()),
		Airports: len(inv),
	})
}

func (h *Handler) handleAirports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	airports, err := h.svc.Airports(r.Context())
	if err != nil {
		log.Printf("[api] airports failed: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, airports)
}

func (h *Handler) handleFlights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flights, err := h.svc.Flights(r.Context())
	if err != nil {
		log.Printf("[api] flights failed: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, flights)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q, err := parseSearchQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := h.svc.MatchRoundTrips(r.Context(), q)
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
		return
	case err != nil:
		log.Printf("[api] search-flights failed: %v", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	jsonOK(w, results)
}

// parseSearchQuery reads the search parameters. duration defaults to 1 and
// budget is optional.
func parseSearchQuery(r *http.Request) (MatchQuery, error) {
	v := r.URL.Query()

	raw := v.Get("destination_codes")
	if strings.TrimSpace(raw) == "" {
		return MatchQuery{}, &ValidationError{Msg: "destination_codes is required"}
	}
	q := MatchQuery{Destinations: strings.Split(raw, ","), TripDays: 1}

	if d := v.Get("duration"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return MatchQuery{}, &ValidationError{Msg: "duration must be an integer, got " + strconv.Quote(d)}
		}
		q.TripDays = n
	}

	if b := v.Get("budget"); b != "" {
		f, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return MatchQuery{}, &ValidationError{Msg: "budget must be a number, got " + strconv.Quote(b)}
		}
		q.Budget = &f
	}

	if s := v.Get("sort"); s != "" {
		key, err := matcher.ParseSortKey(s)
		if err != nil {
			return MatchQuery{}, &ValidationError{Msg: err.Error()}
		}
		q.SortBy = key
	}
	return q, nil
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
