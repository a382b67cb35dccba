// Package main is the entry point for the todo API server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/todoapi/internal/config"
	"github.com/vyrodovalexey/todoapi/internal/events"
	"github.com/vyrodovalexey/todoapi/internal/server"
	"github.com/vyrodovalexey/todoapi/internal/service"
	"github.com/vyrodovalexey/todoapi/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use a basic logger for startup errors
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to load configuration", zap.Error(err))
		return 1
	}

	// Initialize logger
	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		basicLogger, _ := zap.NewProduction()
		basicLogger.Error("failed to initialize logger", zap.Error(err))
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("rate_limit_per_min", cfg.RateLimitPerMin),
		zap.Strings("trusted_proxies", cfg.TrustedProxies),
	)

	// Build the item store; an unreachable backend is fatal
	itemStore, closeStore, err := buildStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize item store", zap.Error(err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := closeStore(ctx); err != nil {
			logger.Error("failed to close item store", zap.Error(err))
		}
	}()

	broker := events.NewBroker(logger)
	defer broker.Close()

	itemService := service.NewItemService(itemStore, broker, logger)
	ready := func(ctx context.Context) error { return store.Ping(ctx, itemStore) }

	srv := server.New(cfg, logger, itemService, ready, broker)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", zap.Error(err))
		return 1
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("server stopped")
	return 0
}

// buildStore creates the configured backend and layers the optional
// read-through cache and the metrics decorator on top. The returned close
// function releases backend resources.
func buildStore(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (store.Store, func(context.Context) error, error) {
	var (
		backend   store.Store
		closeFunc = func(context.Context) error { return nil }
	)

	switch cfg.StoreBackend {
	case config.BackendMemory, "":
		logger.Info("using in-memory item store")
		backend = store.NewMemoryStore()
	case config.BackendMongo:
		logger.Info("using mongo item store",
			zap.String("database", cfg.MongoDatabase),
			zap.String("collection", cfg.MongoCollection),
		)
		mongoStore, err := store.NewMongoStore(ctx, store.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			Timeout:    cfg.MongoTimeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		backend = mongoStore
		closeFunc = mongoStore.Close
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}

	if cfg.CacheSize > 0 {
		cached, err := store.NewCachedStore(backend, cfg.CacheSize)
		if err != nil {
			_ = closeFunc(ctx)
			return nil, nil, fmt.Errorf("creating item cache: %w", err)
		}
		logger.Info("item cache enabled", zap.Int("size", cfg.CacheSize))
		backend = cached
	}

	if cfg.MetricsEnabled {
		backend = store.NewInstrumentedStore(backend, cfg.StoreBackend)
	}

	return backend, closeFunc, nil
}

// initLogger initializes a zap logger with the specified log level.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build()
}
