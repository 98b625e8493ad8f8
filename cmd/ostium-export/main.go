package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ostium-io/ostium/internal/config"
	"github.com/ostium-io/ostium/internal/export"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Warehouse.URL == "" {
		logger.Fatal("warehouse.url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("directory unreachable", zap.Error(err))
	}

	publisher, err := export.NewPublisher(ctx, cfg.Warehouse.URL, logger)
	if err != nil {
		logger.Fatal("warehouse init failed", zap.Error(err))
	}
	defer publisher.Close()

	runner := export.NewRunner(export.NewReader(client), publisher, cfg.Warehouse.Interval, logger)

	logger.Info("ostium export starting",
		zap.String("redis", cfg.Redis.Addr),
		zap.Duration("interval", cfg.Warehouse.Interval),
	)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("export stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("ostium export done")
}
