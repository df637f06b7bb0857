package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/config"
	appHTTP "github.com/cmlabs-hris/payroll-backend-go/internal/handler/http"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/cache"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/cron"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/postgresql"
	notificationService "github.com/cmlabs-hris/payroll-backend-go/internal/service/notification"
	payrollService "github.com/cmlabs-hris/payroll-backend-go/internal/service/payroll"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	// Period cache is optional; without Redis every read goes to Postgres.
	var periodCache payrollService.PeriodCache
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer closeRedis(rdb)
		periodCache = cache.NewPeriodCache(rdb, cfg.Payroll.CacheTTL)
	}

	configRepo := postgresql.NewPayrollConfigRepository(db)
	periodRepo := postgresql.NewPayrollPeriodRepository(db)
	rosterRepo := postgresql.NewPayrollRosterRepository(db)
	itemRepo := postgresql.NewPayrollItemRepository(db)
	loanRepo := postgresql.NewLoanRepository(db)
	attendanceRepo := postgresql.NewAttendanceRepository(db)
	leaveRequestRepo := postgresql.NewLeaveRequestRepository(db)
	notificationRepo := postgresql.NewNotificationRepository(db)
	transactor := postgresql.NewTransactor(db)

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		return fmt.Errorf("init jwt: %w", err)
	}

	hub := sse.NewHub()
	notifSvc := notificationService.NewNotificationService(notificationRepo, hub, notificationService.Config{
		BatchSize:     cfg.Notification.BatchSize,
		FlushInterval: cfg.Notification.FlushInterval,
		WorkerCount:   cfg.Notification.Workers,
		QueueSize:     cfg.Notification.QueueSize,
	}, logger)
	defer notifSvc.Stop()

	var invalidator payrollService.CacheInvalidator
	if periodCache != nil {
		invalidator = periodCache
	}
	publisher := payrollService.NewAsyncPublisher(invalidator, notifSvc, logger)
	// runs before notifSvc.Stop so queued batch notifications are flushed
	defer publisher.Close()

	processor := payrollService.NewBatchProcessor(
		periodRepo,
		configRepo,
		rosterRepo,
		itemRepo,
		loanRepo,
		transactor,
		attendanceRepo,
		leaveRequestRepo,
		publisher,
		payrollService.ProcessorConfig{FetchTimeout: cfg.Payroll.FetchTimeout},
		logger,
	)
	payrollSvc := payrollService.NewPayrollService(
		configRepo,
		periodRepo,
		rosterRepo,
		itemRepo,
		attendanceRepo,
		leaveRequestRepo,
		processor,
		periodCache,
		logger,
	)

	scheduler := cron.NewScheduler(cfg.Location(), logger)
	payrollJobs := cron.NewPayrollJobs(configRepo, periodRepo, notificationRepo, notifSvc, invalidator, cfg.Location(), logger)
	if err := payrollJobs.RegisterJobs(scheduler, cfg.Payroll.AutoPeriodCron); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	payrollHandler := appHTTP.NewPayrollHandler(payrollSvc)
	notificationHandler := appHTTP.NewNotificationHandler(notifSvc, JWTService)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{AllowedOrigins: cfg.App.CORSOrigins, Logger: logger},
		JWTService,
		payrollHandler,
		notificationHandler,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.App.LogLevel))

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "school-payroll"),
		slog.String("env", cfg.App.Env),
	)
}

func closeRedis(rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		slog.Warn("failed to close redis", slog.String("error", err.Error()))
	}
}
