// Package jobs runs the periodic health checks of both processes.
package jobs

import (
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lufespi/gestor-academico/internal/config"
	"github.com/lufespi/gestor-academico/internal/metrics"
)

type Prober interface {
	Probe(ctx context.Context) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// StartBackendProbe checks the API once, then every ProbeInterval, and
// records the outcome in the backend_up gauge.
func StartBackendProbe(ctx context.Context, cfg config.Config, probe Prober, logger *slog.Logger) {
	if probe == nil {
		logger.Warn("backend probe disabled: no prober configured")
		return
	}
	up := true
	run(ctx, cfg, func(ctx context.Context) {
		err := probe.Probe(ctx)
		if err != nil {
			metrics.BackendUp.Set(0)
			if up {
				logger.Warn("backend probe failed", "err", err)
			}
			up = false
			return
		}
		metrics.BackendUp.Set(1)
		if !up {
			logger.Info("backend reachable again")
		}
		up = true
	})
}

// StartDatabaseHealthJob keeps the gRPC health status of service in line with
// database reachability.
func StartDatabaseHealthJob(ctx context.Context, cfg config.Config, db Pinger, health StatusSetter, service string, logger *slog.Logger) {
	run(ctx, cfg, func(ctx context.Context) {
		if err := db.Ping(ctx); err != nil {
			logger.Error("database health check failed", "err", err)
			health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
			return
		}
		health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	})
}

func run(ctx context.Context, cfg config.Config, check func(context.Context)) {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	tick := func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		check(tickCtx)
		cancel()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		tick()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}
