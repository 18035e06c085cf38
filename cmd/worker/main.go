// Package main - точка входа фонового процесса (Worker) schoolbook.
//
// Worker отвечает за:
// - Ежедневный перевод просроченной оплаты обучения в статус overdue
// - Ежемесячный расчёт зарплаты и выставление оплаты (по расписанию или вручную)
// - Операционный HTTP: /health, /ready, /metrics, /admin/jobs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/schoolbook/schoolbook-core/config"
	"github.com/schoolbook/schoolbook-core/internal/app"
	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/observability"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/memory"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/postgres"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/redis"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/scheduler"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/schoolbook/schoolbook-core/internal/interface/http"
	"github.com/schoolbook/schoolbook-core/internal/interface/http/handlers"
	"github.com/schoolbook/schoolbook-core/pkg/circuitbreaker"
	"github.com/schoolbook/schoolbook-core/pkg/logger"
	"github.com/schoolbook/schoolbook-core/pkg/retry"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// options are the command-line switches. Everything else comes from the
// environment.
type options struct {
	migrateDown bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.migrateDown, "migrate-down", false, "roll back the latest migration and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(logger.Config{Level: cfg.Observability.LogLevel, Environment: string(cfg.App.Environment)})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logg.Sync()
	log := logg.Named("worker")

	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return fmt.Errorf("failed to set school timezone: %w", err)
	}

	log.Info("starting schoolbook worker",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("version", cfg.App.Version),
		zap.String("timezone", cfg.App.Timezone),
	)

	flush, err := observability.InitSentry(cfg.Observability.SentryDSN, string(cfg.App.Environment), cfg.App.Version)
	if err != nil {
		return fmt.Errorf("failed to init sentry: %w", err)
	}
	defer flush()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	jobMetrics := scheduler.NewMetrics(reg)
	financeMetrics := jobs.NewFinanceMetrics(reg)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	startup := retry.Startup(func(attempt int, err error, delay time.Duration) {
		log.Warn("dependency not ready, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	})

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout

	db, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
		conn, err := postgres.NewConnection(connectCtx, pgCfg)
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return nil, retry.Permanent(err)
		}
		return conn, err
	}, startup...)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("connected to database")

	if opts.migrateDown {
		return rollbackMigration(ctx, db, log)
	}

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		version, err := postgres.MigrationVersion(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		log.Info("migrations applied", zap.Int64("schema_version", version))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS: КЭШ ОЦЕНОК И БЛОКИРОВКИ
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.PingCheck(db))

	var (
		scoreCache app.ScoreCache
		locker     command.Locker
	)
	if cfg.Redis.Disabled {
		log.Warn("redis disabled: score cache and job locks are process-local")
		scoreCache = memory.NewScoreCache()
		locker = memory.NewLocker(nil)
	} else {
		rcfg := redis.DefaultConfig()
		rcfg.URL = cfg.Redis.URL
		rcfg.Host = cfg.Redis.Host
		rcfg.Port = cfg.Redis.Port
		rcfg.Password = cfg.Redis.Password
		rcfg.DB = cfg.Redis.DB
		rcfg.PoolSize = cfg.Redis.PoolSize
		rcfg.MinIdleConns = cfg.Redis.MinIdleConns
		rcfg.DialTimeout = cfg.Redis.DialTimeout
		rcfg.ReadTimeout = cfg.Redis.ReadTimeout
		rcfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err := retry.DoWithData(ctx, func(context.Context) (*redis.Cache, error) {
			cache, err := redis.NewCache(rcfg)
			if err != nil && !errors.Is(err, redis.ErrCacheConnection) {
				return nil, retry.Permanent(err)
			}
			return cache, err
		}, startup...)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer cache.Close()
		log.Info("connected to redis")

		cacheLog := log.With(logger.Component("cache"))
		breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
			cacheLog.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		})
		scoreCache = redis.NewScoreCache(cache, cfg.Redis.ScoreTTL).WithBreaker(breaker)
		locker = redis.NewJobLock(cache)
		health.AddCheck("redis", handlers.PingCheck(cache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПРИЛОЖЕНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	runner := scheduler.NewRunner(scheduler.RunnerConfig{
		Logger:  logg.Logger,
		Metrics: jobMetrics,
		Timeout: cfg.Scheduler.JobTimeout,
		OnError: observability.CaptureJobErr,
	})

	clock := command.Clock(func() time.Time { return time.Now().UTC() })
	svc := app.New(app.Deps{
		UnitOfWork: postgres.NewUnitOfWork(db),
		Reads:      postgres.NewStores(db.Pool()),
		Cache:      scoreCache,
		Locker:     locker,
		Runner:     runner,
		Clock:      clock,
		LockTTL:    cfg.Scheduler.LockTTL,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:       logg.Logger,
		Timezone:     timeutil.SchoolTZ,
		Metrics:      jobMetrics,
		TickInterval: cfg.Scheduler.TickInterval,
	})
	sched.OnJobError(observability.CaptureJobErr)

	timeout := cfg.Scheduler.JobTimeout
	jobLog := logg.With(logger.Component("finance"))
	toRegister := []struct {
		job  scheduler.Job
		cron string
	}{
		{jobs.NewSweepOverdueTuitionJob(svc.Commands.SweepOverdueTuition, financeMetrics, jobLog, timeout), cfg.Scheduler.SweepCron},
		{jobs.NewMonthlyPayrollJob(svc.Commands.RunPayroll, financeMetrics, jobLog, timeout), cfg.Scheduler.PayrollCron},
		{jobs.NewGenerateTuitionJob(svc.Commands.GenerateTuition, financeMetrics, jobLog, clock,
			jobs.GenerateTuitionJobConfig{DueDays: cfg.Finance.DueDayOffset, Timeout: timeout}), cfg.Scheduler.TuitionCron},
	}
	for _, r := range toRegister {
		var schedule scheduler.Schedule
		if r.cron != "" {
			cs, err := scheduler.ParseCron(r.cron, timeutil.SchoolTZ)
			if err != nil {
				return fmt.Errorf("job %s: %w", r.job.Name(), err)
			}
			schedule = cs
		}
		if err := sched.Register(r.job, schedule); err != nil {
			return fmt.Errorf("failed to register job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled: jobs run only through /admin/jobs")
	}

	var srv *httpserver.Server
	if cfg.HTTP.Enabled {
		admin, err := handlers.NewAdminAuth(cfg.HTTP.AdminTokenHash)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_TOKEN_HASH: %w", err)
		}
		httpLog := logg.With(logger.Component("http"))
		srv = httpserver.NewServer(httpserver.Config{
			Host:           cfg.HTTP.Host,
			Port:           cfg.HTTP.Port,
			ReadTimeout:    cfg.HTTP.ReadTimeout,
			WriteTimeout:   cfg.HTTP.WriteTimeout,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
			EnableMetrics:  cfg.Observability.MetricsEnabled,
			Version:        cfg.App.Version,
		}, httpserver.Dependencies{
			Logger:   httpLog,
			Health:   health,
			Jobs:     handlers.NewJobs(sched, httpLog, timeout),
			Admin:    admin,
			Gatherer: reg,
		})
		g.Go(srv.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		if sched.IsRunning() {
			errs = append(errs, sched.Stop())
		}
		errs = append(errs, runner.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		return err
	}
	log.Info("worker stopped")
	return nil
}

// rollbackMigration undoes the latest migration and reports the version left.
func rollbackMigration(ctx context.Context, db *postgres.Connection, log *zap.Logger) error {
	if err := postgres.MigrateDown(ctx, db); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	version, err := postgres.MigrationVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Info("migration rolled back", zap.Int64("schema_version", version))
	return nil
}
