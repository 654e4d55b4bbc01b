package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/internal/api"
	"github.com/matzehuels/gearlayout/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// serveCommand creates the serve command for the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		Long: `Start the HTTP/JSON API server.

Routes are served under /v1 (solve, validate, render, capabilities and
layouts). /healthz and /metrics are unauthenticated. Set api.auth_token
(GEARLAYOUT_API_AUTH_TOKEN) to require a bearer token on /v1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.config()
			if addr == "" {
				addr = cfg.API.ListenAddr
			}

			runner, err := c.newRunner(ctx, false)
			if err != nil {
				return fmt.Errorf("serve: initialize runner: %w", err)
			}
			defer runner.Close()

			st, err := c.openStore(ctx)
			if err != nil {
				return fmt.Errorf("serve: open storage: %w", err)
			}
			opts := []api.Option{api.WithBaseOptions(c.baseOptions())}
			if st != nil {
				defer st.Close()
				opts = append(opts, api.WithStore(st))
			} else {
				c.Logger.Warn("layout storage is disabled; /v1/layouts will return 501")
			}
			if !noMetrics {
				m := metrics.New()
				m.Install()
				opts = append(opts, api.WithMetrics(m.Handler()))
			}

			srv := api.NewServer(runner, componentLogger(c.Logger, "api"), api.Config{
				AuthToken:      cfg.API.AuthToken,
				RateLimit:      cfg.API.RateLimit,
				RateBurst:      cfg.API.RateBurst,
				RequestTimeout: cfg.API.RequestTimeout,
				MaxBodyBytes:   cfg.API.MaxBodyBytes,
			}, opts...)

			if cfg.API.AuthToken == "" {
				c.Logger.Warn("HTTP API: auth is DISABLED; set GEARLAYOUT_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      cfg.API.RequestTimeout + 30*time.Second,
				IdleTimeout:       120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				c.Logger.Info("HTTP API server starting", "addr", addr, "api", cfg.API)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
					errCh <- fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				c.Logger.Info("shutting down")
			case startErr := <-errCh:
				return startErr
			}

			if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
				return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
			}

			// ListenAndServe may have failed after Shutdown started.
			if startErr := <-errCh; startErr != nil {
				return startErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "do not serve /metrics or record Prometheus metrics")

	return cmd
}
