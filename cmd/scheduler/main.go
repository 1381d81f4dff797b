package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"example.com/healthscore/internal/config"
	"example.com/healthscore/internal/observability"
	"example.com/healthscore/internal/orchestrator"
	"example.com/healthscore/internal/persistence/postgres"
	"example.com/healthscore/internal/telemetry"
	httptransport "example.com/healthscore/internal/transport/http"
	"example.com/healthscore/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	credentials, err := vault.New(cfg.EncryptionKeyBytes())
	if err != nil {
		log.Fatalf("failed to initialise credential vault: %v", err)
	}

	orch := orchestrator.New(
		postgres.NewStore(pool),
		telemetry.NewGatewayClient(cfg.TelemetryBaseURL),
		credentials,
		cfg.Orchestrator(),
		orchestrator.WithLogger(logger),
	)

	metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	metricsSrv := httptransport.NewServer(metricsCfg, promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("scheduler metrics listening", "address", cfg.MetricsAddress)
		return httptransport.Serve(ctx, metricsSrv, metricsCfg.ShutdownTimeout)
	})
	g.Go(func() error {
		logger.Info("scheduler started",
			"interval", cfg.SchedulerInterval,
			"concurrency", cfg.SchedulerConcurrency,
			"starts_per_second", cfg.SchedulerStartsPerSecond)
		return orch.RunScheduler(ctx, cfg.SchedulerInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}
