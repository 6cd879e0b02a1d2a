// farefinder: round-trip fare discovery service
//
// Polls the airline timetable endpoint across a rolling horizon of one-month
// windows for every airport in the directory, stores the normalised fares in
// PostgreSQL and pairs them into round trips from the home airport.
//
//	farefinder serve     HTTP API + nightly refresh
//	farefinder refresh   one discovery run
//	farefinder search    print matches as JSON
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "farefinder",
		Short:        "Discover and match round-trip air fares",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd(), refreshCmd(), searchCmd())
	return cmd
}
