package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"partnerfeed/internal/app/feed"
	"partnerfeed/internal/config"
	"partnerfeed/internal/domain"
	"partnerfeed/internal/infrastructure/rest"
	"partnerfeed/internal/infrastructure/sse"
	"partnerfeed/internal/infrastructure/storage"
	"partnerfeed/internal/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Partner order feed starting...")

	store, err := storage.Open(cfg.StorePath)
	if err != nil {
		appLogger.Fatal("Failed to open local store", zap.String("path", cfg.StorePath), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("Error closing local store", zap.Error(err))
		}
	}()

	registry := metrics.NewRegistry()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", registry.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Metrics server started", zap.String("address", cfg.MetricsAddr))

	apiClient := rest.NewClient(cfg.APIBaseURL, store, cfg.FetchTimeout,
		appLogger.With(zap.String("component", "RESTClient")))

	connLogger := appLogger.With(zap.String("component", "SSEConnection"))
	newConn := func(onEvent func(domain.OrderEvent), onDown func(error)) feed.StreamConn {
		return sse.NewConnection(
			cfg.StreamURL(),
			cfg.SSE.HandshakeTimeout,
			2*cfg.SSE.HeartbeatInterval,
			onEvent,
			onDown,
			connLogger,
			registry,
		)
	}

	streamService := feed.NewOrderStreamService(store, newConn, cfg.SSE,
		appLogger.With(zap.String("component", "OrderStreamService")), registry)

	manager := feed.NewOrderFeedManager(cfg, apiClient, streamService,
		appLogger.With(zap.String("component", "OrderFeedManager")), registry)

	partner, err := store.Partner()
	if err != nil {
		appLogger.Warn("Failed to read partner record", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Start(ctx, partner.ID)

	// Periodic snapshot of feed health; the UI layer would render this.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info := manager.ConnectionInfo()
				appLogger.Info("Order feed status",
					zap.String("strategy", string(info.Strategy)),
					zap.Bool("real_time", info.IsRealTime),
					zap.String("connection", string(info.ConnectionStatus)),
					zap.Int("orders", len(manager.Orders())),
					zap.Time("last_update", info.LastUpdate))
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("Shutting down partner order feed...")
	manager.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Partner order feed stopped.")
}
