package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/auth"
	"github.com/lumarank/lumarank/internal/resilience"
	"github.com/lumarank/lumarank/internal/server"
	"github.com/lumarank/lumarank/pkg/workos"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stores, err := initStores(ctx, true, true)
		if err != nil {
			return err
		}
		defer stores.Close()
		if err := stores.migrate(ctx); err != nil {
			return err
		}

		analyzer, err := initAnalyzer(ctx, stores.Reports)
		if err != nil {
			return err
		}
		resolver := auth.NewResolver(stores.Tenants,
			workos.NewClient(cfg.WorkOS.APIKey, cfg.WorkOS.Endpoint),
			identityPolicy(),
		)

		srv := server.New(server.Deps{
			Analyzer: analyzer,
			Auth:     resolver,
			Reports:  stores.Reports,
			Checks: map[string]server.Pinger{
				"store":   stores.Tenants,
				"reports": stores.Reports,
			},
			Options: server.Options{
				CORSOrigins:    cfg.Server.CORSOrigins,
				RateLimitRPS:   cfg.Server.RateLimitRPS,
				RateLimitBurst: cfg.Server.RateLimitBurst,
			},
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		return listen(ctx, &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      srv.Handler(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  120 * time.Second,
		})
	},
}

// identityPolicy retries WorkOS lookups that failed transiently.
func identityPolicy() resilience.Policy {
	return resilience.NewPolicy("workos", 3, 250*time.Millisecond, 2*time.Second).
		WithAttemptTimeout(10 * time.Second)
}

// listen serves until ctx is cancelled, then drains in-flight requests.
func listen(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server listen")
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
