package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"farefinder/discovery-service/internal/fares"
	"farefinder/discovery-service/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var noInitialRun bool

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and refresh flights on a schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			mux := http.NewServeMux()
			fares.NewHandler(a.svc, version).RegisterRoutes(mux)

			corsHandler := cors.New(cors.Options{
				AllowedOrigins:   a.cfg.AllowedOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders:   []string{"*"},
				AllowCredentials: true,
			})

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%s", a.cfg.Port),
				Handler:           corsHandler.Handler(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}

			sched := scheduler.New(a.svc, a.cfg.RefreshCron)
			if err := sched.Start(ctx, !noInitialRun); err != nil {
				return err
			}
			defer sched.Stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("[farefinder] %s listening on :%s (home %s)", version, a.cfg.Port, a.cfg.HomeCode)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			}

			log.Println("[farefinder] Shutting down…")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("[farefinder] Shutdown error: %v", err)
			}
			log.Println("[farefinder] Stopped.")
			return nil
		},
	}

	c.Flags().BoolVar(&noInitialRun, "no-initial-run", false, "Skip the discovery run at startup")
	return c
}
