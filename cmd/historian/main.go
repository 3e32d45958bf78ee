// cmd/historian is an asynchronous historian service that pops game actions
// from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("failed to apply schema: %v", err)
	}

	svc := historian.NewService(cache.NewQueue(rdb, cfg.QueueName), historian.DBStore{}, historian.Options{
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
		Inactivity: cfg.InactivityTimeout,
		Logger:     logger.WithField("queue", cfg.QueueName),
	})
	svc.Run(ctx)
}
