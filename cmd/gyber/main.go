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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/activitymap"
	"github.com/gyber/go-custody/api"
	"github.com/gyber/go-custody/chain"
	"github.com/gyber/go-custody/config"
	"github.com/gyber/go-custody/mail"
	"github.com/gyber/go-custody/persistence"
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

	db, err := persistence.Open(cfg.DSN)
	if err != nil {
		logger.Error("open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := persistence.Ping(ctx, db, 5*time.Second); err != nil {
		logger.Error("ping database", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.AutoMigrate {
		if err := persistence.Migrate(ctx, db); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	repo := custody.NewRepositoryManager(db)
	repo.MustValidate()

	tokens, err := custody.NewTokenServiceFromConfig(cfg, logger)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}

	registry, err := chain.LoadRegistry(cfg.NetworksFile)
	if err != nil {
		logger.Error("load networks", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counter, err := activitymap.NewPrometheusSink(metrics)
	if err != nil {
		logger.Error("init activity metrics", slog.Any("error", err))
		os.Exit(1)
	}

	addr, password, redisDB := cfg.RedisAddress()
	dispatcher := mail.NewDispatcher(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       redisDB,
	})
	defer dispatcher.Close()

	controller := api.NewController(api.Dependencies{
		Repo:       repo,
		Tokens:     tokens,
		Mailer:     dispatcher,
		Networks:   registry,
		Deriver:    chain.NewHDWallet(),
		Transactor: chain.NewTransactor(registry).WithLogger(logger),
		Explorer:   chain.NewExplorer(cfg.ExplorerURL, cfg.ExplorerKey),
		Activity: activitymap.Fanout{
			counter,
			activitymap.NewLogSink(logger),
		},
		BaseURL: cfg.BaseURL,
	},
		api.WithLogger(logger),
		api.WithProject(cfg.ProjectName, cfg.Version),
		api.WithDebug(cfg.Debug),
	)

	srv := api.NewServer(api.ServerConfig{
		AppName:     cfg.ProjectName,
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		Gatherer:    metrics,
		Logger:      logger,
	}, controller)

	logger.Info("starting server",
		slog.String("addr", cfg.Addr),
		slog.String("version", cfg.Version),
		slog.Any("networks", registry.Names()),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(cfg.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server exited properly")
}
