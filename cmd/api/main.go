package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"chainstack-provider/internal/adapter/chainstack"
	delivery "chainstack-provider/internal/adapter/delivery/http"
	"chainstack-provider/internal/adapter/fetch"
	handler "chainstack-provider/internal/adapter/handler/http"
	"chainstack-provider/internal/adapter/metrics"
	"chainstack-provider/internal/adapter/rpc"
	"chainstack-provider/internal/adapter/storage/memory"
	"chainstack-provider/internal/application"
	"chainstack-provider/internal/config"
	"chainstack-provider/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// --- Configuration ---
	cfgPath := "configs"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	// --- Logger ---
	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()
	zap.ReplaceGlobals(appLogger)
	appLogger.Info("Logger initialized",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("level", cfg.Logger.Level),
	)

	if cfg.Chainstack.IsCommunityResource() {
		appLogger.Warn("No Chainstack API key configured, using the shared community key",
			zap.Strings("networks", cfg.Chainstack.Networks),
		)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		appLogger.Fatal("Failed to register metrics", zap.Error(err))
	}

	// --- Dependency Injection (Manual) ---
	appLogger.Info("Initializing dependencies...")

	providers := application.ChainstackProviders(
		chainstack.WithAPIKey(cfg.Chainstack.APIKey),
		chainstack.WithTimeout(cfg.Chainstack.RequestTimeout),
		chainstack.WithLogger(appLogger),
		chainstack.WithTransportOptions(
			fetch.WithMaxAttempts(uint(cfg.Chainstack.MaxAttempts)),
			fetch.WithThrottleSlot(cfg.Chainstack.ThrottleSlot),
			fetch.WithRateLimit(cfg.Chainstack.RequestsPerSecond, cfg.Chainstack.Burst),
			fetch.WithObserver(collector),
		),
	)
	cacheRepo := memory.NewCacheRepository(cfg.Cache, appLogger)
	rpcChecker := rpc.NewChecker(appLogger, cfg.Checker.CheckTimeout)

	gatewayService := application.NewGatewayService(
		rootCtx, *cfg, providers, cacheRepo, rpcChecker, collector, appLogger,
	)
	networkHandler := handler.NewNetworkHandler(gatewayService, appLogger)

	// --- HTTP Router & Server ---
	r := delivery.NewRouter(networkHandler, registry, appLogger)
	server := &fasthttp.Server{
		Handler: delivery.LoggingMiddleware(appLogger, r.Handler),
		Name:    cfg.App.Name,
	}

	serverAddr := ":" + cfg.Server.Port
	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", serverAddr))
		serveErr <- server.ListenAndServe(serverAddr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			appLogger.Error("HTTP server failed", zap.Error(err))
		}
		stop()
	case <-rootCtx.Done():
		appLogger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	gatewayService.Close()
	appLogger.Info("Gateway stopped")
}
