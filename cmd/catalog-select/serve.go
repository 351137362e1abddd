package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/catalog-select/internal/api"
	"github.com/Sternrassler/catalog-select/pkg/logging"
	"github.com/Sternrassler/catalog-select/pkg/metrics"
)

// newHandler mounts the selection API and /metrics.
func newHandler(a *app, requestTimeout time.Duration) http.Handler {
	mux := api.NewServer(a.ctl, requestTimeout).Routes()
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port           string
		requestTimeout time.Duration
		preload        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the selection controller as an HTTP JSON API",
		Example: `  # Start on the configured port (default 8080)
  catalog-select serve

  # Select the first 15 records
  curl -X POST 'localhost:8080/api/select?count=15'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port != "" {
				cfg.Server.Port = port
			}
			logger := logging.NewLogger("server")

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           newHandler(a, requestTimeout),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(net.Listener) context.Context {
					return cmd.Context()
				},
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error {
				logger.Info().Str("addr", server.Addr).Msg("Starting catalog-select API")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				logger.Info().Msg("Shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if preload {
				g.Go(func() error {
					if err := a.ctl.GoToPage(ctx, 0); err != nil {
						logger.Warn().Err(err).Msg("Initial page load failed")
					}
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", 2*time.Minute, "Upper bound for a single API request")
	cmd.Flags().BoolVar(&preload, "preload", true, "Load page 0 at startup")

	return cmd
}
