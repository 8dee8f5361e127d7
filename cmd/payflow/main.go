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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/payflow-app/payflow/internal/app"
	"github.com/payflow-app/payflow/internal/auth"
	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/observability"
	"github.com/payflow-app/payflow/internal/platform/cache"
	"github.com/payflow-app/payflow/internal/platform/db"
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/schedule"
	"github.com/payflow-app/payflow/internal/shared"
	"github.com/payflow-app/payflow/internal/users"
	"github.com/payflow-app/payflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)

	userRepo := users.NewRepository(pool)
	directory := users.NewDirectory(userRepo)

	broadcaster := notify.NewBroadcaster(redisClient, logger)
	notifyRepo := notify.NewRepository(pool)
	router := notify.NewRouter(notifyRepo, directory, broadcaster, logger)

	userService := users.NewService(userRepo, router, audit, logger)
	authService := auth.NewService(auth.NewRepository(pool), userRepo, jobClient, router,
		cfg.LoginCodeSecret, cfg.LoginCodeTTL, logger)

	requestRepo := requests.NewRepository(pool)
	requestService := requests.NewService(requestRepo, directory, router, audit, logger)

	scheduleRepo := schedule.NewRepository(pool)
	scheduleManager := schedule.NewManager(scheduleRepo, requestRepo, directory, router, audit, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	handler := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthHandler:         auth.NewHandler(logger, authService),
		UsersHandler:        users.NewHandler(logger, userService),
		RequestsHandler:     requests.NewHandler(logger, requestService),
		ScheduleHandler:     schedule.NewHandler(logger, scheduleManager),
		NotificationHandler: notify.NewHandler(logger, router, directory),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      handler,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
