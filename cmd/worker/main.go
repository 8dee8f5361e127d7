package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/payflow-app/payflow/internal/app"
	jobmetrics "github.com/payflow-app/payflow/internal/jobs"
	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/platform/cache"
	"github.com/payflow-app/payflow/internal/platform/db"
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/schedule"
	"github.com/payflow-app/payflow/internal/users"
	"github.com/payflow-app/payflow/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	metrics := jobmetrics.NewMetrics(nil)

	userRepo := users.NewRepository(pool)
	directory := users.NewDirectory(userRepo)
	broadcaster := notify.NewBroadcaster(redisClient, logger)
	router := notify.NewRouter(notify.NewRepository(pool), directory, broadcaster, logger)

	requestRepo := requests.NewRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)

	overdueJob := jobs.NewOverdueSweepJob(requestRepo, directory, router, logger, metrics)
	recurringJob := jobs.NewRecurringSweepJob(requestRepo, scheduleRepo, directory, router, logger, metrics)

	overdueTask := asynq.NewTask(jobs.TaskOverdueSweep, nil)
	recurringTask := asynq.NewTask(jobs.TaskRecurringSweep, nil)
	cronSpec := fmt.Sprintf("@every %s", cfg.SweepInterval)

	smtpCfg := jobs.SMTPConfig{From: cfg.SMTPFrom}
	if cfg.SMTPHost != "" {
		smtpCfg.Addr = fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: jobs.NewSendEmailHandler(smtpCfg, logger)},
			{Type: jobs.TaskOverdueSweep, Handler: overdueJob.Handle},
			{Type: jobs.TaskRecurringSweep, Handler: recurringJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cronSpec, Task: overdueTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: cronSpec, Task: recurringTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
