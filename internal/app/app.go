// Package app wires the shared plumbing every batch binary needs: config,
// logging, tracing, the store connection with migrations, the HTTP client and
// the optional event producer.
package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/Ramsey-B/willow/config"
	"github.com/Ramsey-B/willow/internal/repositories/attempt"
	"github.com/Ramsey-B/willow/internal/repositories/checkpoint"
	"github.com/Ramsey-B/willow/internal/repositories/person"
	"github.com/Ramsey-B/willow/pkg/database"
	"github.com/Ramsey-B/willow/pkg/events"
	"github.com/Ramsey-B/willow/pkg/httpclient"
	"github.com/Ramsey-B/willow/pkg/kafka"
	"github.com/Ramsey-B/willow/pkg/logging"
	"github.com/Ramsey-B/willow/pkg/merge"
	"github.com/Ramsey-B/willow/pkg/ops"
	"github.com/Ramsey-B/willow/pkg/resolve"
	"github.com/Ramsey-B/willow/pkg/retry"
	"github.com/Ramsey-B/willow/pkg/tracing"
)

// App holds everything a job binary needs after bootstrap.
type App struct {
	Config *config.Config
	Logger ectologger.Logger
	DB     database.DB
	HTTP   *httpclient.Client

	Persons     *person.Repository
	Checkpoints *checkpoint.Repository
	Attempts    *attempt.Repository

	producer *kafka.Producer
	cleanups []func()
}

// Bootstrap loads config and brings up the shared dependencies for one job.
// Any failure here is fatal; the caller exits non-zero.
func Bootstrap(ctx context.Context, job string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, flushLogs := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLogs,
	})
	logger = logger.WithFields(map[string]any{"app": cfg.AppName, "job": job})

	a := &App{
		Config:   cfg,
		Logger:   logger,
		cleanups: []func(){flushLogs},
	}

	if cfg.TracingEnabled {
		shutdown, err := tracing.Setup(ctx, tracing.SetupConfig{
			ServiceName: cfg.AppName + "-" + job,
			Exporter:    cfg.TracingExporter,
			Endpoint:    cfg.OTLPEndpoint,
			Protocol:    cfg.OTLPProtocol,
			Insecure:    true,
			Timeout:     10 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
		a.cleanups = append(a.cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		})
	}

	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.cleanups = append(a.cleanups, func() { _ = db.Close() })

	if err := a.migrate(db); err != nil {
		return nil, err
	}

	a.HTTP = httpclient.NewClient(httpclient.Config{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	}, logger)

	a.Persons = person.NewRepository(db, logger)
	a.Checkpoints = checkpoint.NewRepository(db, logger)
	a.Attempts = attempt.NewRepository(db, logger)

	if cfg.KafkaEnabled {
		a.producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		a.cleanups = append(a.cleanups, func() { _ = a.producer.Close() })
	}

	return a, nil
}

func (a *App) migrate(db *database.DatabaseInstance) error {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	svc := database.NewMigrationService(a.Logger, &database.MigrationConfig{
		MigrationFolderPath: a.Config.DatabaseMigrationFolderPath,
		Version:             uint(a.Config.DatabaseMigrationVersion),
		Force:               a.Config.DatabaseMigrationForce,
		RequiredVersion:     a.Config.RequiredSchemaVersion,
	})
	return svc.Migrate(a.Config.DatabaseName, driver)
}

// NewEmitter returns the event emitter for a job, a no-op when Kafka is off.
func (a *App) NewEmitter(job string) *events.Emitter {
	if a.producer == nil {
		return events.Noop(a.Logger, job)
	}
	return events.NewEmitter(a.producer, a.Logger, job)
}

// NewEngine builds the merge engine for a job.
func (a *App) NewEngine(job string) *merge.Engine {
	return merge.NewEngine(a.Persons, a.NewEmitter(job), a.Logger, job)
}

// NewResolver builds the resolver with the configured acceptance threshold.
func (a *App) NewResolver() *resolve.Resolver {
	return resolve.New(a.Persons, a.Logger, a.Config.FuzzyAcceptThreshold)
}

// NewExecutor builds the shared retry executor from config.
func (a *App) NewExecutor() *retry.Executor {
	return retry.NewExecutor(retry.Policy{
		MaxAttempts:    a.Config.MaxAttempts,
		BaseDelay:      a.Config.BaseRetryDelay,
		MaxDelay:       a.Config.MaxRetryDelay,
		JitterFraction: 0.2,
	}, a.Logger)
}

// StartOps runs the health and metrics listener until ctx is cancelled.
func (a *App) StartOps(ctx context.Context, job string) {
	if !a.Config.OpsEnabled {
		return
	}
	server := ops.NewServer(a.DB, a.Logger, a.Config.AppName+"-"+job, strconv.Itoa(a.Config.OpsPort))
	go server.Start(ctx)
}

// Close releases resources in reverse bootstrap order.
func (a *App) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}
