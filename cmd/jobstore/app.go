package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/jobstore/internal/codec"
	"github.com/cuongbtq/jobstore/internal/config"
	"github.com/cuongbtq/jobstore/internal/events"
	"github.com/cuongbtq/jobstore/internal/funcref"
	"github.com/cuongbtq/jobstore/internal/jobstore"
	"github.com/cuongbtq/jobstore/shared/database"
	"github.com/cuongbtq/jobstore/shared/logger"
	"github.com/cuongbtq/jobstore/shared/rabbitmq"
)

// app holds the resources every command opens
type app struct {
	cfg          *config.Config
	logger       *logger.Logger
	dbClient     *database.Client
	rabbitClient *rabbitmq.Client
	store        *jobstore.Store
}

type bootstrapOptions struct {
	validate func(*config.Config) error
	// events connects the RabbitMQ publisher when enabled in the config
	events bool
}

func bootstrap(ctx context.Context, configPath string, opts bootstrapOptions) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	validate := opts.validate
	if validate == nil {
		validate = (*config.Config).Validate
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: appLogger}

	a.dbClient, err = database.NewClient(ctx, cfg.Database.ClientConfig(), appLogger.Logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var publisher events.Publisher = events.Nop{}
	if opts.events && cfg.RabbitMQ.Enabled {
		a.rabbitClient, err = rabbitmq.NewClient(cfg.RabbitMQ.ClientConfig(), appLogger.Logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		publisher = events.NewRabbitPublisher(a.rabbitClient, appLogger.Logger)
	}

	jobCodec := codec.Default
	if cfg.Store.Codec != "" {
		if jobCodec, err = codec.ByName(cfg.Store.Codec); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.store, err = jobstore.New(ctx, jobstore.Options{
		DB:           a.dbClient.GetDB(),
		Addr:         a.dbClient.Addr(),
		TableName:    cfg.Store.Table,
		Schema:       cfg.Store.Schema,
		Codec:        jobCodec,
		Resolver:     funcref.NewPlaceholderRegistry(),
		Publisher:    publisher,
		Logger:       appLogger.Logger,
		QueryTimeout: cfg.Store.QueryTimeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}

	return a, nil
}

// Close releases everything bootstrap opened
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.rabbitClient != nil {
		a.rabbitClient.Close()
	}
	if a.dbClient != nil {
		a.dbClient.Close()
	}
	a.logger.Close()
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := cfg.LoggerConfig()
	loggerCfg.TimeFormat = time.RFC3339

	return logger.New(loggerCfg)
}

func (a *app) logStart(command string) {
	a.logger.Info("Starting jobstore",
		slog.String("command", command),
		slog.String("app", a.cfg.App.Name),
		slog.String("version", a.cfg.App.Version),
		slog.String("environment", a.cfg.App.Environment),
		slog.String("store", a.store.String()),
	)
}
