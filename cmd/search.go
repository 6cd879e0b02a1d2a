package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"farefinder/discovery-service/internal/fares"
	"farefinder/discovery-service/internal/matcher"
)

func searchCmd() *cobra.Command {
	var (
		destinations []string
		days         int
		budget       float64
		sortBy       string
	)

	c := &cobra.Command{
		Use:   "search",
		Short: "Print round-trip matches from the stored flights as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var key matcher.SortKey
			if sortBy != "" {
				k, err := matcher.ParseSortKey(sortBy)
				if err != nil {
					return err
				}
				key = k
			}

			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			q := fares.MatchQuery{Destinations: destinations, TripDays: days, SortBy: key}
			if cmd.Flags().Changed("budget") {
				q.Budget = &budget
			}

			results, err := a.svc.MatchRoundTrips(cmd.Context(), q)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	c.Flags().StringSliceVarP(&destinations, "dest", "d", []string{fares.AllDestinations}, "Destination codes, or ALL")
	c.Flags().IntVar(&days, "days", 1, "Trip length in calendar days, both ends included")
	c.Flags().Float64Var(&budget, "budget", 0, "Maximum total discount price (optional)")
	c.Flags().StringVar(&sortBy, "sort", "", "Sort key: date|price (default from SORT_BY)")
	return c
}
