package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one discovery and replace the stored flights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			inv, err := a.svc.RunDiscovery(cmd.Context())
			if err != nil {
				return fmt.Errorf("refresh: %w", err)
			}
			log.Printf("[farefinder] Stored %d flight(s) for %d airport(s)", len(inv.Flights()), len(inv))
			return nil
		},
	}
}
