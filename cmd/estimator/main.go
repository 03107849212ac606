// cmd/estimator/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"delivery-estimator/internal/api"
	"delivery-estimator/internal/app"
	"delivery-estimator/internal/common/camunda"
	"delivery-estimator/internal/common/config"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/common/observability"

	edt "delivery-estimator/internal/workers/estimation/estimate-delivery-time"
	ecd "delivery-estimator/internal/workers/estimation/estimate-courier-demand"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("service", cfg.App.Name))
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting delivery estimator...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()

	a, err := app.Build(ctx, cfg, log, app.Options{
		Recorder:       obs,
		ConnectRetries: 10,
		ConnectDelay:   2 * time.Second,
	})
	if err != nil {
		zapLog.Fatal("estimator init failed", zap.Error(err))
	}
	defer a.Close()

	if cfg.Models.PreloadOnStart {
		preloadCtx, cancel := context.WithTimeout(ctx, 2*config.GetDuration(cfg.Models.FetchTimeout))
		if err := a.Preload(preloadCtx); err != nil {
			zapLog.Warn("starting with unavailable models; /ready will report 503", zap.Error(err))
		}
		cancel()
	}

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers *camunda.Manager
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig:            camunda.DefaultRetryConfig,
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewManager(zeebe.GetClient(), cfg.Camunda, log)

		dtCfg := config.GetWorkerConfig(cfg, edt.TaskType)
		workers.Start(edt.TaskType, dtCfg, edt.NewHandler(
			&edt.Config{Timeout: workerTimeout(dtCfg)}, a.Estimator, log,
		))

		cdCfg := config.GetWorkerConfig(cfg, ecd.TaskType)
		workers.Start(ecd.TaskType, cdCfg, ecd.NewHandler(
			&ecd.Config{Timeout: workerTimeout(cdCfg)}, a.Estimator, log,
		))
		zapLog.Info("Zeebe workers running", zap.Strings("taskTypes", workers.TaskTypes()))
	}

	// --- HTTP API ---
	metricsPath := ""
	if cfg.Observability.MetricsEnabled {
		metricsPath = cfg.Observability.MetricsPath
	}
	server := api.NewServer(a.Estimator, log, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsPath:    metricsPath,
	})
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP API listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if workers != nil {
		workers.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("observability shutdown failed", zap.Error(err))
	}

	zapLog.Info("Delivery estimator stopped gracefully")
}

func workerTimeout(wcfg config.WorkerConfig) time.Duration {
	if wcfg.Timeout > 0 {
		return config.GetDuration(wcfg.Timeout)
	}
	return edt.LoadConfig().Timeout
}
