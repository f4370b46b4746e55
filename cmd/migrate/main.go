package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/suparena/userstore"
	"github.com/suparena/userstore/config"
	"github.com/suparena/userstore/datastore/ddb"
	"github.com/suparena/userstore/logging"
	"github.com/suparena/userstore/metrics"
	"github.com/suparena/userstore/migration"
	"go.uber.org/zap"
)

var (
	versionFlag = flag.Bool("version", false, "Show version information")
	vFlag       = flag.Bool("v", false, "Show version information (short)")
	dryRunFlag  = flag.Bool("dry-run", false, "Scan the legacy tables and report counts without writing")
)

func main() {
	flag.Parse()

	if *versionFlag || *vFlag {
		fmt.Printf("userstore migrate version %s\n", userstore.GetVersionInfo())
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadMigration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *dryRunFlag, logger); err != nil {
		logger.Error("migration failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.MigrationConfig, dryRun bool, logger *zap.Logger) error {
	logger.Info("starting migration to single-table design",
		zap.String("table", cfg.TableName),
		zap.String("oldUsersTable", cfg.OldUsersTable),
		zap.String("oldDashboardTable", cfg.OldDashboardTable),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint))

	client, err := ddb.NewClient(ctx, ddb.ClientConfig{
		Region:   cfg.Region,
		Endpoint: cfg.Endpoint,
	})
	if err != nil {
		return err
	}

	storeOpts := cfg.StoreOptions()
	store := ddb.NewStore(client, cfg.TableName, logger, storeOpts...)
	legacy := ddb.NewLegacyReader(client, cfg.PageSize, logger, storeOpts...)

	collector := metrics.NewCollector(cfg.MetricsNamespace)
	defer logCounters(collector, logger)

	job := migration.NewJob(legacy, store,
		migration.Config{
			UsersTable:     cfg.OldUsersTable,
			DashboardTable: cfg.OldDashboardTable,
			DryRun:         dryRun,
		},
		migration.WithLogger(logger),
		migration.WithMetrics(collector),
		migration.WithTableEnsurer(func(ctx context.Context) (bool, error) {
			return ddb.EnsureTable(ctx, client, cfg.TableName, cfg.TableWait, logger)
		}),
	)

	report, err := job.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("users: %d, global stats copied: %t, user stats: %d, dry run: %t\n",
		report.Users, report.GlobalStatsCopied, report.UserStats, report.DryRun)
	return nil
}

// logCounters dumps the run's counters; nothing scrapes a one-shot command.
func logCounters(collector *metrics.Collector, logger *zap.Logger) {
	snapshot, err := collector.Snapshot()
	if err != nil {
		logger.Warn("failed to gather migration metrics", zap.Error(err))
		return
	}
	logger.Info("migration metrics", zap.Any("counters", snapshot))
}
