package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/gyber/go-custody/config"
	"github.com/gyber/go-custody/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := config.NewLogger(cfg)

	addr, password, db := cfg.RedisAddress()

	redisClient := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	cancel()

	renderer, err := mail.NewRenderer(cfg.ProjectName)
	if err != nil {
		logger.Error("init mail templates", slog.Any("error", err))
		os.Exit(1)
	}

	sender := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		Timeout:  15 * time.Second,
	})

	worker, err := mail.NewWorker(mail.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: addr, Password: password, DB: db},
		Handler:   mail.NewHandler(renderer, sender, logger),
		Logger:    logger,
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
