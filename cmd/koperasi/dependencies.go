package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/duplicate"
	importhandler "github.com/FACorreiaa/koperasi-ledger/internal/domain/import/handler"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/reconcile"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/resolver"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/koperasi-ledger/pkg/config"
	"github.com/FACorreiaa/koperasi-ledger/pkg/cron"
	"github.com/FACorreiaa/koperasi-ledger/pkg/db"
	"github.com/FACorreiaa/koperasi-ledger/pkg/metrics"
	"github.com/FACorreiaa/koperasi-ledger/pkg/notify"
	"github.com/FACorreiaa/koperasi-ledger/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Store    ledger.Store
	Inbox    storage.Inbox

	Engine    *service.Engine
	Notifier  notify.BatchNotifier
	Scheduler *cron.Scheduler

	ImportHandler *importhandler.ImportHandler
}

// InitDependencies connects to the database and builds the import engine
// with everything it reports to.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the pool and brings the schema up to date
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Store = ledger.NewPostgresStore(d.DB.Pool)
	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initServices(ctx context.Context) error {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	d.Engine = service.NewEngine(ctx, d.Store, engineConfig(d.Config.Import), d.Logger).
		WithMetrics(metrics.NewImportMetrics(d.Registry))

	if d.Config.Notify.ResendAPIKey != "" {
		d.Notifier = notify.NewEmailNotifier(
			d.Config.Notify.ResendAPIKey,
			d.Config.Notify.FromEmail,
			d.Config.Notify.Recipients,
			d.Logger,
		)
		d.Engine.WithNotifier(d.Notifier)
	}

	inbox, err := storage.New(storage.Config{Path: d.Config.Storage.Path})
	if err != nil {
		return fmt.Errorf("failed to init upload inbox: %w", err)
	}
	d.Inbox = inbox

	d.Scheduler = cron.NewScheduler(
		d.Inbox,
		d.Engine,
		d.Config.Import.Schedule,
		d.Engine.Config().Location,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.Engine, d.Inbox, d.Config.Server.MaxUploadBytes, d.Logger)
	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}

// engineConfig maps the environment settings onto the engine configuration.
func engineConfig(c config.ImportConfig) service.Config {
	ec := service.DefaultConfig()
	ec.Location = normalizer.LoadLocation(c.Timezone)
	ec.DuplicatePolicy = duplicate.ParsePolicy(c.DuplicatePolicy)
	ec.MemberPolicy = resolver.ParseMemberPolicy(c.MemberPolicy)
	ec.Reconcile.Mode = reconcile.ParseCompensationMode(c.CompensationMode)
	ec.Reconcile.Retries = uint64(c.Retries)
	ec.Reconcile.RetryBase = c.RetryBase
	ec.Reconcile.WritesPerSecond = c.WritesPerSecond
	if c.User != "" {
		ec.User = c.User
	}
	return ec
}
