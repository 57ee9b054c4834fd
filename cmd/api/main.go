package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/octofit/internal/api"
	"example.com/octofit/internal/auth"
	"example.com/octofit/internal/config"
	"example.com/octofit/internal/domain"
	"example.com/octofit/internal/logging"
	"example.com/octofit/internal/outbox"
	"example.com/octofit/internal/persistence/memory"
	persistence "example.com/octofit/internal/persistence/postgres"
	"example.com/octofit/internal/seed"
	httptransport "example.com/octofit/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, "octofit-api")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo        domain.Repository
		serviceOpts []domain.Option
		dispatcher  *outbox.Dispatcher
	)

	if cfg.PostgresURL == "" {
		mem, err := memory.NewSeededRepository()
		if err != nil {
			logger.Fatal("failed to seed in-memory store", zap.Error(err))
		}
		repo = mem
		logger.Info("using seeded in-memory store")
	} else {
		if err := persistence.Migrate(cfg.PostgresURL); err != nil {
			logger.Fatal("failed to migrate postgres", zap.Error(err))
		}

		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		pg := persistence.NewRepository(pool, persistence.WithUserEventsTopic(cfg.UserEventsTopic))
		if cfg.SeedDatabase {
			ds, err := seed.Generate(seed.Options{Seed: uint64(time.Now().UnixNano())})
			if err != nil {
				logger.Fatal("failed to generate seed data", zap.Error(err))
			}
			if err := pg.Seed(ctx, ds); err != nil {
				logger.Fatal("failed to seed postgres", zap.Error(err))
			}
			logger.Info("seeded postgres",
				zap.Int("users", len(ds.Users)),
				zap.Int("teams", len(ds.Teams)),
				zap.Int("activities", len(ds.Activities)),
			)
		}
		repo = pg

		if len(cfg.KafkaBrokers) > 0 {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
			defer producer.Close()

			dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger.Named("outbox"))
			go dispatcher.Start(ctx)
		} else {
			logger.Info("no kafka brokers configured, leaderboard rebuilds inline")
			serviceOpts = append(serviceOpts, domain.WithInlineLeaderboard())
		}
	}

	service := domain.NewService(repo, serviceOpts...)

	handlerOpts := []api.Option{
		api.WithLogger(logger),
		api.WithBaseURL(cfg.PublicBaseURL, cfg.CodespaceName),
	}
	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	if authCfg.Enabled() {
		handlerOpts = append(handlerOpts, api.WithWriteScope())
	}

	handler := api.NewHandler(service, handlerOpts...)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	origins := []string{"http://localhost:3000"}
	if cfg.CodespaceName != "" {
		origins = append(origins, fmt.Sprintf("https://%s-3000.app.github.dev", cfg.CodespaceName))
	}

	authMiddleware := auth.NewMiddleware(authCfg, auth.SafeMethods)
	server := httptransport.NewServer(
		httptransport.DefaultServerConfig(cfg.HTTPAddress),
		httptransport.RequestLogger(logger)(httptransport.CORS(origins...)(authMiddleware.Wrap(mux))),
	)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("octofit api listening", zap.String("address", cfg.HTTPAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
