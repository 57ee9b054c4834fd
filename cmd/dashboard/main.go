package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/octofit/internal/client"
	"example.com/octofit/internal/config"
	"example.com/octofit/internal/dashboard"
	"example.com/octofit/internal/logging"
	httptransport "example.com/octofit/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, "octofit-dashboard")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	api := client.New(cfg.APIBaseURL(),
		client.WithToken(cfg.APIToken),
		client.WithTimeout(cfg.UpstreamTimeout),
		client.WithLogger(logger.Named("client")),
	)

	srv, err := dashboard.New(api,
		dashboard.WithLogger(logger),
		dashboard.WithCloseDelay(cfg.EditCloseDelay),
	)
	if err != nil {
		logger.Fatal("failed to load templates", zap.Error(err))
	}

	csrfKey, err := cfg.CSRFAuthKey()
	if err != nil {
		logger.Fatal("invalid csrf key", zap.Error(err))
	}
	if csrfKey == nil {
		if cfg.IsProduction() {
			logger.Fatal("CSRF_KEY is required in production")
		}
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			logger.Fatal("failed to generate csrf key", zap.Error(err))
		}
		logger.Warn("CSRF_KEY not set, using an ephemeral key")
	}

	var trusted []string
	if cfg.CodespaceName != "" {
		trusted = append(trusted, fmt.Sprintf("%s-3000.app.github.dev", cfg.CodespaceName))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", srv.Handler(dashboard.SecurityConfig{
		CSRFKey:        csrfKey,
		Production:     cfg.IsProduction(),
		TrustedOrigins: trusted,
	}))

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.DashboardAddress), mux)

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("octofit dashboard listening",
			zap.String("address", cfg.DashboardAddress),
			zap.String("api", api.BaseURL()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
