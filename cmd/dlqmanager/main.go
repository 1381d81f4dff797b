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
	"example.com/healthscore/internal/outbox"
	httptransport "example.com/healthscore/internal/transport/http"
)

const defaultDLQBatchSize = 50

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

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, outbox.WithLogger(logger))

	metricsCfg := httptransport.DefaultServerConfig(cfg.MetricsAddress)
	metricsSrv := httptransport.NewServer(metricsCfg, promhttp.Handler())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("dlq manager metrics listening", "address", cfg.MetricsAddress)
		return httptransport.Serve(ctx, metricsSrv, metricsCfg.ShutdownTimeout)
	})
	g.Go(func() error {
		logger.Info("dlq manager started", "interval", cfg.DLQPollInterval, "max_retries", cfg.DLQMaxRetries)
		return manager.Run(ctx, cfg.DLQPollInterval, defaultDLQBatchSize)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dlq manager stopped", "error", err)
		os.Exit(1)
	}
}
