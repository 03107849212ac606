// Package app wires configuration into a ready estimator: registry, artifact
// sources, catalog and the shared clients behind them.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"delivery-estimator/internal/artifact"
	"delivery-estimator/internal/common/aws"
	"delivery-estimator/internal/common/config"
	"delivery-estimator/internal/common/database"
	httpclient "delivery-estimator/internal/common/http"
	"delivery-estimator/internal/common/logger"
	"delivery-estimator/internal/common/observability"
	"delivery-estimator/internal/inference"
	"delivery-estimator/pkg/registry"
)

// App owns everything built from the config. Close releases the clients.
type App struct {
	Config    *config.Config
	Registry  *registry.ModelRegistry
	Catalog   *inference.Catalog
	Estimator *inference.Estimator
	Postgres  *database.PostgresClient
	Redis     *database.RedisClient
	S3        *aws.S3Client

	log     logger.Logger
	closers []func() error
}

// Options tune Build for callers other than the long-running service.
type Options struct {
	// Recorder receives artifact fetch telemetry; nil disables it.
	Recorder *observability.Observability
	// ConnectRetries bounds the attempts to reach postgres and redis.
	ConnectRetries int
	ConnectDelay   time.Duration
}

// Build loads the registry and prepares one handle per model. No artifact is
// fetched here; see Preload.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if opts.ConnectRetries <= 0 {
		opts.ConnectRetries = 1
	}
	if opts.ConnectDelay <= 0 {
		opts.ConnectDelay = 2 * time.Second
	}

	a := &App{Config: cfg, log: log}

	reg, err := a.loadRegistry(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Registry = reg

	deps := artifact.Deps{
		HTTP:   httpclient.NewClient(config.GetDuration(cfg.Models.FetchTimeout), cfg.Models.FetchRetries),
		Logger: log,
	}
	if opts.Recorder != nil {
		deps.Recorder = opts.Recorder
	}

	if needsS3(reg) {
		s3c, err := aws.NewS3Client(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		a.S3 = s3c
		deps.S3 = s3c
	}

	if cfg.Models.Cache.Enabled {
		err := retryWithBackoff(func() error {
			var err error
			a.Redis, err = database.NewRedis(ctx, cfg.Database.Redis)
			return err
		}, opts.ConnectRetries, opts.ConnectDelay, log, "Redis connection")
		if err != nil {
			// artifacts are fetched directly without a cache
			log.Warn("artifact cache disabled", map[string]interface{}{"error": err})
			a.Redis = nil
		} else {
			a.closers = append(a.closers, a.Redis.Close)
			deps.Cache = a.Redis
			deps.CacheTTL = time.Duration(cfg.Models.Cache.TTL) * time.Second
			deps.Prefix = cfg.Models.Cache.KeyPrefix
		}
	}

	catalog, err := inference.NewCatalog(reg, deps, config.GetDuration(cfg.Models.FetchTimeout), log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Catalog = catalog
	a.Estimator = inference.NewEstimator(catalog, inference.NewInvoker(log),
		cfg.Models.DeliveryTimeModel, cfg.Models.CourierDemandModel)

	for _, name := range []string{cfg.Models.DeliveryTimeModel, cfg.Models.CourierDemandModel} {
		if _, ok := reg.Find(name); !ok {
			log.Warn("default model missing from registry", map[string]interface{}{"model": name})
		}
	}

	log.Info("model catalog ready", map[string]interface{}{
		"models":   catalog.Names(),
		"registry": cfg.Models.RegistrySource,
		"cache":    cfg.Models.Cache.Enabled,
	})
	return a, nil
}

func (a *App) loadRegistry(ctx context.Context, opts Options) (*registry.ModelRegistry, error) {
	switch a.Config.Models.RegistrySource {
	case "postgres":
		err := retryWithBackoff(func() error {
			var err error
			a.Postgres, err = database.NewPostgres(ctx, a.Config.Database.Postgres)
			return err
		}, opts.ConnectRetries, opts.ConnectDelay, a.log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Postgres.Close)
		return registry.LoadFromDB(ctx, a.Postgres.DB)
	default:
		return registry.LoadRegistry(a.Config.Models.RegistryPath)
	}
}

// Preload loads every preload model. Failures stay sticky on their handles
// and are reported; the service keeps running and /ready stays 503.
func (a *App) Preload(ctx context.Context) error {
	if err := a.Catalog.Preload(ctx); err != nil {
		a.log.Error("model preload failed", map[string]interface{}{"error": err})
		return err
	}
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", map[string]interface{}{"error": err})
		}
	}
	a.closers = nil
}

func needsS3(reg *registry.ModelRegistry) bool {
	for _, m := range reg.Models {
		if strings.HasPrefix(strings.ToLower(m.URI), "s3://") {
			return true
		}
	}
	return false
}

// retryWithBackoff retries operation with doubling delays.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
