// Package app wires driftguard's adapters from configuration and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/arkilian/driftguard/internal/config"
	"github.com/arkilian/driftguard/internal/engine"
	"github.com/arkilian/driftguard/internal/observability"
	"github.com/arkilian/driftguard/internal/results"
	"github.com/arkilian/driftguard/internal/runlog"
	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/internal/warehouse"
	"github.com/arkilian/driftguard/pkg/types"
)

// App owns the shared resources of driftguard commands.
type App struct {
	cfg    *config.Config
	logger *log.Logger

	// Shared resources
	storage   storage.ObjectStorage
	warehouse warehouse.Warehouse
	results   results.Store
	metrics   *observability.RunMetrics
	engine    *engine.Engine

	// Lifecycle
	mu     sync.Mutex
	opened bool
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	return &App{cfg: cfg, logger: logger}, nil
}

// NewLogger builds a logrus logger from the log configuration.
func NewLogger(cfg config.LogConfig) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(os.Stderr)

	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// Open initializes storage, warehouse, results store, metrics and the engine.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return fmt.Errorf("app is already open")
	}

	if err := a.initResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize resources: %w", err)
	}

	opts, err := engine.OptionsFromConfig(a.cfg)
	if err != nil {
		a.cleanup()
		return err
	}

	var sinks []runlog.Sink
	if sink, ok := a.results.(runlog.Sink); ok {
		sinks = append(sinks, sink)
	}

	a.engine = engine.New(opts, engine.Deps{
		Storage:   a.storage,
		Warehouse: a.warehouse,
		Results:   a.results,
		Metrics:   a.metrics,
		Logger:    a.logger,
		Sinks:     sinks,
	})
	a.opened = true

	a.logger.WithFields(log.Fields{
		"mode":      a.cfg.Mode,
		"storage":   a.cfg.Storage.Type,
		"warehouse": a.cfg.Warehouse.Driver,
		"results":   a.cfg.Results.Type,
		"policy":    a.cfg.Outcome.Policy,
	}).Info("driftguard initialized")
	return nil
}

// initResources initializes storage, warehouse, results store and metrics.
func (a *App) initResources(ctx context.Context) error {
	var err error

	// Initialize storage
	a.storage, err = OpenStorage(ctx, a.cfg.Storage)
	if err != nil {
		return err
	}
	a.logger.WithField("type", a.cfg.Storage.Type).Debug("Storage initialized")

	// Initialize warehouse
	wh, err := warehouse.Open(warehouse.Options{
		Driver: a.cfg.Warehouse.Driver,
		DSN:    a.cfg.Warehouse.DSN,
		Attach: a.cfg.Warehouse.Attach,
	})
	if err != nil {
		return fmt.Errorf("failed to open warehouse: %w", err)
	}
	a.warehouse = warehouse.Throttle(wh, a.cfg.Warehouse.MaxQPS, a.cfg.Engine.Concurrency)
	a.logger.WithFields(log.Fields{
		"driver":  a.cfg.Warehouse.Driver,
		"max_qps": a.cfg.Warehouse.MaxQPS,
	}).Debug("Warehouse initialized")

	// Initialize results store
	switch a.cfg.Results.Type {
	case "sqlite":
		a.results, err = results.NewSQLiteStore(a.cfg.Results.Path)
		if err != nil {
			return fmt.Errorf("failed to open results store: %w", err)
		}
	case "object":
		a.results = results.NewObjectStore(a.storage, a.cfg.Results.Prefix)
	case "memory":
		a.results = results.NewMemoryStore()
	default:
		return fmt.Errorf("unsupported results type: %s", a.cfg.Results.Type)
	}
	a.logger.WithField("type", a.cfg.Results.Type).Debug("Results store initialized")

	a.metrics = observability.NewRunMetrics()
	return nil
}

// OpenStorage creates the object storage selected by cfg.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		s, err := storage.NewLocalStorage(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return s, nil
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.S3.Region != "" {
			s3Cfg.Region = cfg.S3.Region
		}
		if cfg.S3.Endpoint != "" {
			s3Cfg.Endpoint = cfg.S3.Endpoint
		}
		s3Cfg.UsePathStyle = cfg.S3.UsePathStyle
		s, err := storage.NewS3Storage(ctx, cfg.S3.Bucket, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return s, nil
	case "minio":
		s, err := storage.NewMinioStorage(cfg.Minio.Bucket, storage.MinioConfig{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			Region:          cfg.Minio.Region,
			UseSSL:          cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Config returns the resolved configuration.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the operator logger.
func (a *App) Logger() *log.Logger {
	return a.logger
}

// Engine returns the run engine. Open must have succeeded.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Results returns the artifact store. Open must have succeeded.
func (a *App) Results() results.Store {
	return a.results
}

// Run performs one regression run and exports metrics when configured.
func (a *App) Run(ctx context.Context) *engine.RunResult {
	res := a.engine.Run(ctx)
	a.exportMetrics()
	return res
}

// Reevaluate recomputes the verdict of a stored run.
func (a *App) Reevaluate(ctx context.Context, runID string) (*types.Verdict, error) {
	return a.engine.Reevaluate(ctx, runID)
}

func (a *App) exportMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.WithError(err).Warn("Failed to export metrics")
	}
}

// Close releases all resources.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleanup()
	a.opened = false
	return nil
}

// cleanup releases any initialized resources.
func (a *App) cleanup() {
	if a.results != nil {
		if err := a.results.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close results store")
		}
		a.results = nil
	}
	if a.warehouse != nil {
		if err := a.warehouse.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close warehouse")
		}
		a.warehouse = nil
	}
}
