package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/healthscore/internal/api"
	"example.com/healthscore/internal/auth"
	"example.com/healthscore/internal/config"
	"example.com/healthscore/internal/domain"
	"example.com/healthscore/internal/observability"
	"example.com/healthscore/internal/orchestrator"
	"example.com/healthscore/internal/outbox"
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

	store := postgres.NewStore(pool)
	client := telemetry.NewGatewayClient(cfg.TelemetryBaseURL)
	orch := orchestrator.New(store, client, credentials, cfg.Orchestrator(), orchestrator.WithLogger(logger))
	service := domain.NewService(store, credentials, telemetry.Verifier{Client: client, Timeout: cfg.ProviderCallTimeout})

	producer, err := outbox.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Fatalf("failed to configure kafka producer: %v", err)
	}
	defer producer.Close()
	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, outbox.WithLogger(logger))
	go dispatcher.Start(ctx)

	handler := api.NewHandler(service, orch, api.WithLogger(logger))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	serverCfg := httptransport.DefaultServerConfig(cfg.HTTPAddress)
	server := httptransport.NewServer(serverCfg,
		httptransport.LogRequests(logger, httptransport.AllowOrigin(cfg.CORSAllowedOrigin, authMiddleware.Wrap(mux))))

	logger.Info("healthscore api listening", "address", cfg.HTTPAddress)
	if err := httptransport.Serve(ctx, server, serverCfg.ShutdownTimeout); err != nil {
		logger.Error("server error", "error", err)
	}

	stop()
	dispatcher.Wait()
}
