package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-fieldsales/internal/app"
	"github.com/noah-isme/backend-fieldsales/internal/config"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/jobs"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "fieldsales"), nil)

	if cfg.RedisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, closeDeps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		closeDeps()
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer closeDeps()
	if err := deps.Redis.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis url")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     envInt("WORKER_CONCURRENCY", 2),
		ShutdownTimeout: 30 * time.Second,
		Logger:          jobs.NewLogger(logger),
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	mux := asynq.NewServeMux()
	jobs.Register(mux, &jobs.Backup{Ledger: deps.Ledger, Tables: app.TableIndex(), Logger: logger})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: ids.LoadLocation(cfg.Timezone),
		Logger:   jobs.NewLogger(logger),
	})
	if err := jobs.Schedule(scheduler, "@every "+cfg.BackupInterval.String(), app.Tables()); err != nil {
		logger.Fatal().Err(err).Msg("schedule backups")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Dur("backup_interval", cfg.BackupInterval).Int("tables", len(app.Tables())).Msg("worker starting")

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
