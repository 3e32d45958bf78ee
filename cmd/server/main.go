// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/engine"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/handlers"
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
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(cfg.TokenTTL)
	if err != nil {
		logger.Fatalf("failed to create session issuer: %v", err)
	}

	opts := handlers.ServerOptions{
		Issuer:           issuer,
		Logger:           logger,
		RoundDelay:       cfg.RoundDelay,
		DisconnectGrace:  cfg.DisconnectGrace,
		MaxActionsPerSec: cfg.MaxActionsPerSec,
		AllowedOrigins:   cfg.AllowedOrigins,
	}
	opts.DefaultRules = engine.DefaultHouseRules()
	opts.DefaultRules.Wild4ChallengeSec = cfg.Wild4ChallengeSec

	// action history is optional; the game runs without Redis
	if rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB); err != nil {
		logger.WithError(err).Warn("redis unavailable, action history disabled")
	} else {
		defer rdb.Close()
		opts.Historian = cache.NewQueue(rdb, cfg.QueueName)
	}

	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatalf("failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.EnsureSchema(ctx); err != nil {
			logger.Fatalf("failed to apply schema: %v", err)
		}
		opts.OnMatchEnd = recordMatch(logger)
	}

	gs := handlers.NewGameServer(opts)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(gs),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("graceful shutdown failed")
		}
	}()

	logger.Infof("Running on %s", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

// recordMatch persists a finished match off the game lock.
func recordMatch(logger logrus.FieldLogger) game.OnMatchEndFunc {
	return func(res game.MatchResult) {
		rec := database.MatchRecord{
			GameID:    res.GameID,
			RoomCode:  res.RoomCode,
			Rounds:    res.Rounds,
			StartedAt: res.StartedAt,
			EndedAt:   res.EndedAt,
		}
		for _, p := range res.Players {
			rec.Rows = append(rec.Rows, database.MatchRow{
				PlayerID:   p.ID,
				PlayerName: p.Name,
				Score:      p.Score,
				DidWin:     p.ID == res.WinnerID,
			})
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := database.RecordMatchResult(ctx, rec); err != nil {
				logger.WithError(err).WithField("game_id", res.GameID).Error("failed to record match result")
			}
		}()
	}
}
