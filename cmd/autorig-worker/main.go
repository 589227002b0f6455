package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/autorig/internal/config"
	"github.com/menta2k/autorig/internal/logging"
	"github.com/menta2k/autorig/internal/provider"
	"github.com/menta2k/autorig/pkg/detection"
	"github.com/menta2k/autorig/pkg/redisqueue"
)

func main() {
	var backend string
	flag.StringVar(&backend, "backend", "", "vision backend: ollama|llamacpp|gemini (default detector.provider, or llamacpp)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{
		Mode:       cfg.Server.Mode,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	// the server side speaks "redis"; the worker needs the model behind it
	d := cfg.Detector
	switch {
	case backend != "":
		d.Provider = backend
	case d.Provider == "redis" || d.Provider == "none":
		d.Provider = "llamacpp"
	}

	vision, cleanup, err := provider.NewVisionClient(ctx, d)
	if err != nil {
		logger.Fatal("failed to create vision client", zap.Error(err))
	}
	defer cleanup()

	rdb := redisqueue.Dial(redisqueue.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis connection failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	queue := redisqueue.New(rdb,
		redisqueue.WithQueueName(cfg.Redis.Queue),
		redisqueue.WithResultTTL(cfg.Redis.ResultTTL),
		redisqueue.WithLogger(logger))
	worker := redisqueue.NewWorker(queue, vision, detection.DefaultPrompt).
		WithJobTimeout(cfg.Detector.PollInterval * time.Duration(cfg.Detector.MaxAttempts))

	logger.Info("worker starting", zap.String("backend", d.Provider), zap.String("queue", queue.Name()))
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}
