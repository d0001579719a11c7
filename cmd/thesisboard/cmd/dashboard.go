package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lufespi/gestor-academico/internal/clients"
	"github.com/lufespi/gestor-academico/internal/dashboard"
	grpcserver "github.com/lufespi/gestor-academico/internal/grpc"
	"github.com/lufespi/gestor-academico/internal/jobs"
	"github.com/lufespi/gestor-academico/internal/session"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the dashboard server",
	Long: `Starts the browser-facing dashboard server. It keeps a session per browser,
decides every navigation by role and loads page data from the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend := clients.NewBackend(cfg.BackendURL, cfg.BackendTimeout)
		factory := func() *session.Store {
			return session.NewStore(backend,
				session.WithLogger(logger),
				session.WithProfileRetry(cfg.ProfileFetchAttempts, cfg.ProfileRetryBackoff),
			)
		}
		sessions, err := dashboard.NewSessions(cfg, factory, logger)
		if err != nil {
			return fmt.Errorf("session cache init failed: %w", err)
		}
		defer sessions.Purge()

		var prober jobs.Prober = backend
		if cfg.ServiceAuthToken != "" && cfg.BackendGRPCAddr != "" {
			probe, err := clients.NewHealthProbe(ctx, cfg.BackendGRPCAddr, cfg.ServiceAuthToken, grpcserver.HealthService, cfg.GRPCDialTimeout)
			if err != nil {
				return fmt.Errorf("grpc dial failed: %w", err)
			}
			defer probe.Close()
			prober = probe
		}
		jobs.StartBackendProbe(ctx, cfg, prober, logger)

		server := dashboard.NewServer(cfg, sessions, backend, logger)
		httpServer := &http.Server{
			Addr:              cfg.DashboardAddr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("dashboard listening", "addr", cfg.DashboardAddr, "backend", cfg.BackendURL)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errCh:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
		return runErr
	},
}

func init() {
	dashboardCmd.Flags().String("addr", "", "HTTP bind address (env: DASHBOARD_ADDR)")
}
