package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tessgen/internal/config"
	"tessgen/internal/pkg/logger"
	"tessgen/internal/pkg/shutdown"
	"tessgen/internal/queue"
	"tessgen/internal/renderer"
	"tessgen/internal/repositories"
	"tessgen/internal/storage"
	"tessgen/internal/worker"
	"tessgen/internal/worker/processor"
)

func main() {
	log := logger.NewDefault().WithComponent("worker-main")
	cfg := config.Load()

	dbURL := config.MustEnv("DATABASE_URL")
	redisAddr := config.MustEnv("REDIS_ADDR")

	ctx, cancel := shutdown.SignalContext(context.Background(), log)
	defer cancel()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	defer shutdownMgr.Shutdown()

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.RegisterSimple("postgres", pool.Close)

	runs := repositories.NewRunRepository(pool)
	if err := runs.EnsureSchema(ctx); err != nil {
		log.LogFatal("failed to apply schema", err)
	}

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(context.Context) error { return rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	client, err := renderer.New(cfg.Render)
	if err != nil {
		log.LogFatal("failed to initialize renderer", err)
	}

	proc := processor.New(processor.Deps{
		Config:   cfg,
		Store:    runs,
		Renderer: client,
		SP:       sp,
		Progress: queue.NewProgressPublisher(rdb, log),
		Log:      log,
	})

	log.Info("worker started",
		"queue", cfg.QueueName,
		"provider", sp.Provider(),
		"workers", cfg.Generator.WorkerCount,
		"renderer", cfg.Render.Mode,
	)
	err = worker.Run(ctx, worker.Deps{
		Queue:     queue.NewRedisQueue(rdb, cfg.QueueName),
		Processor: proc,
		Log:       log,
	})
	if err != nil && ctx.Err() == nil {
		log.Error("worker stopped", "error", err.Error())
	}
}
