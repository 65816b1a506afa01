package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/orderledger/internal/audit"
	"github.com/angelmondragon/orderledger/internal/cron"
	"github.com/angelmondragon/orderledger/internal/orders"
	"github.com/angelmondragon/orderledger/pkg/config"
	"github.com/angelmondragon/orderledger/pkg/db"
	"github.com/angelmondragon/orderledger/pkg/logger"
	"github.com/angelmondragon/orderledger/pkg/metrics"
	"github.com/angelmondragon/orderledger/pkg/migrate"
	"github.com/angelmondragon/orderledger/pkg/outbox"
	"github.com/angelmondragon/orderledger/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single reconciliation cycle and exit")
	jobNames := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	repo := orders.NewRepository(dbClient.DB(), events)
	store, err := orders.NewGormUnitOfWork(dbClient, repo)
	if err != nil {
		logg.Error(context.Background(), "failed to create unit of work", err)
		os.Exit(1)
	}

	cascadeMetrics := metrics.NewCascadeMetrics(prometheus.DefaultRegisterer)
	verifier, err := audit.NewVerifier(store, logg, cascadeMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create verifier", err)
		os.Exit(1)
	}

	auditJob, err := cron.NewDerivedAuditJob(cron.DerivedAuditJobParams{
		Logger:    logg,
		Auditor:   verifier,
		Repair:    cfg.Audit.Repair,
		Reports:   redisClient,
		ReportKey: redisClient.ReportKey("derived-audit"),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create derived audit job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewEventRetentionJob(cron.EventRetentionJobParams{
		Logger:    logg,
		Store:     store,
		Retention: cfg.Events.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create event retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Audit.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(auditJob, retentionJob).Select(*jobNames)
	if err != nil {
		logg.Error(context.Background(), "invalid job selection", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Audit.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"repair":      cfg.Audit.Repair,
	})

	if *once {
		logg.Info(ctx, "running single reconciliation cycle")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "reconciliation cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
