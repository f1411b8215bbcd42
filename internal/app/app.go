// Package app wires the reminder service's dependencies from configuration.
// Both the HTTP server and the scheduler Lambda build their object graph here
// so that they run the exact same Runner.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicremind/internal/calendar"
	"clinicremind/internal/config"
	"clinicremind/internal/db"
	"clinicremind/internal/external"
	"clinicremind/internal/scheduler"
	"clinicremind/internal/types"
)

// metricsSink is implemented by scheduler.CloudWatchMetrics and
// scheduler.NoopMetrics.
type metricsSink interface {
	scheduler.Metrics
	calendar.RefreshRecorder
}

// App holds the long-lived components of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Tenants      *db.TenantRepository
	Appointments *db.AppointmentRepository

	Clients   *external.ClientRegistry
	Metrics   metricsSink
	Refresher *calendar.Refresher
	Gateway   *calendar.Gateway
	Runner    *scheduler.Runner
	Pruner    *scheduler.Pruner
	Jobs      *db.JobHistoryRepository
}

// LoadConfig loads configuration, resolving _SSM_PARAM indirections through
// SSM outside the local environment.
func LoadConfig() (*config.Config, error) {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	return config.LoadConfig(provider)
}

// NewLogger creates a JSON slog.Logger at the given level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// New connects to the database and builds every component. The caller owns
// the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	metrics, err := newMetrics(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool, Metrics: metrics}
	a.build()
	return a, nil
}

// build assembles the components over an already connected pool.
func (a *App) build() {
	cfg, logger := a.Config, a.Logger

	a.Tenants = db.NewTenantRepository(a.Pool)
	a.Appointments = db.NewAppointmentRepository(a.Pool)
	a.Jobs = db.NewJobHistoryRepository(a.Pool)
	a.Clients = external.NewClientRegistry(cfg, logger)

	a.Refresher = calendar.NewRefresher(
		db.NewCredentialRepository(a.Pool),
		a.Clients.Tokens,
		logger.With("component", "calendar-refresher"),
		calendar.WithSkew(cfg.Calendar.RefreshSkew),
		calendar.WithRefreshRecorder(a.Metrics),
	)
	a.Gateway = calendar.NewGateway(a.Refresher, a.Clients.Calendar, logger.With("component", "calendar-gateway"))

	dispatcher := scheduler.NewDispatcher(
		a.Appointments,
		db.NewMessageRepository(a.Pool),
		a.Clients,
		a.Metrics,
		scheduler.DispatcherConfig{
			SendTimeout:   cfg.Messaging.Timeout,
			RatePerSecond: cfg.Messaging.RatePerSecond,
			RateBurst:     cfg.Messaging.RateBurst,
			DefaultLocale: types.Locale(cfg.Messaging.DefaultLocale),
		},
		logger.With("component", "dispatcher"),
	)
	a.Runner = scheduler.NewRunner(
		a.Tenants,
		scheduler.NewScanner(a.Appointments, logger.With("component", "scanner")),
		dispatcher,
		a.Jobs,
		a.Metrics,
		scheduler.RunnerConfig{
			TenantConcurrency: cfg.Scheduler.TenantConcurrency,
			RunTimeout:        cfg.Scheduler.RunTimeout,
		},
		logger.With("component", "runner"),
	)
	a.Pruner = scheduler.NewPruner(
		db.NewRetentionRepository(a.Pool),
		scheduler.RetentionConfig{
			JobHistory: cfg.Scheduler.JobHistoryRetention,
			MessageLog: cfg.Scheduler.MessageLogRetention,
		},
		logger.With("component", "pruner"),
	)
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newMetrics publishes to CloudWatch unless metrics are disabled or the
// process runs locally.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metricsSink, error) {
	if !cfg.Observability.EnableMetrics || cfg.IsLocal() || cfg.IsTestMode {
		return scheduler.NoopMetrics{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return scheduler.NewCloudWatchMetrics(client, cfg.Observability.MetricNamespace, logger.With("component", "metrics")), nil
}
