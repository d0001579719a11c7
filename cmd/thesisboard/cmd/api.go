package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/lufespi/gestor-academico/internal/db"
	grpcserver "github.com/lufespi/gestor-academico/internal/grpc"
	internalhttp "github.com/lufespi/gestor-academico/internal/http"
	"github.com/lufespi/gestor-academico/internal/jobs"
	"github.com/lufespi/gestor-academico/internal/mail"
	"github.com/lufespi/gestor-academico/internal/policy"
	"github.com/lufespi/gestor-academico/internal/repository"
	"github.com/lufespi/gestor-academico/internal/tokens"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the thesis management API",
	Long: `Starts the HTTP API (authentication, profiles and role-scoped queries) and,
when SERVICE_AUTH_TOKEN is set, the gRPC health service used by the dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connection failed: %w", err)
		}
		defer pool.Close()
		store := repository.NewStore(pool)

		enforcer, err := policy.New()
		if err != nil {
			return fmt.Errorf("policy init failed: %w", err)
		}

		var tokenStore tokens.Store = tokens.NewMemoryStore()
		if cfg.RedisAddr != "" {
			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				cancel()
				return fmt.Errorf("redis ping failed: %w", err)
			}
			cancel()
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close error", "err", err)
				}
			}()
			tokenStore = tokens.NewRedisStore(redisClient)
		} else {
			logger.Warn("REDIS_ADDR not set, one-time tokens are kept in memory")
		}

		server := internalhttp.NewServer(cfg, store, enforcer, tokenStore, mail.NewLogOutbox(logger), logger)
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 2)
		go func() {
			logger.Info("api http listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server error: %w", err)
			}
		}()

		var grpcServer *grpc.Server
		if cfg.ServiceAuthToken != "" {
			srv, health, err := grpcserver.NewServer(cfg.ServiceAuthToken)
			if err != nil {
				return fmt.Errorf("grpc init failed: %w", err)
			}
			grpcServer = srv
			jobs.StartDatabaseHealthJob(ctx, cfg, store, health, grpcserver.HealthService, logger)

			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("grpc listen error: %w", err)
			}
			go func() {
				logger.Info("api grpc listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(listener); err != nil {
					errCh <- fmt.Errorf("grpc server error: %w", err)
				}
			}()
		} else {
			logger.Warn("SERVICE_AUTH_TOKEN not set, grpc health service disabled")
		}

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
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return runErr
	},
}

func init() {
	apiCmd.Flags().String("addr", "", "HTTP bind address (env: HTTP_ADDR)")
}
