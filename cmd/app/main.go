package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vtrbr2/message-ia-bot/internal/cache"
	"github.com/Vtrbr2/message-ia-bot/internal/config"
	"github.com/Vtrbr2/message-ia-bot/internal/convo"
	"github.com/Vtrbr2/message-ia-bot/internal/httpserver"
	"github.com/Vtrbr2/message-ia-bot/internal/logging"
	"github.com/Vtrbr2/message-ia-bot/internal/metrics"
	"github.com/Vtrbr2/message-ia-bot/internal/nlu"
	"github.com/Vtrbr2/message-ia-bot/internal/pix"
	"github.com/Vtrbr2/message-ia-bot/internal/repo"
	"github.com/Vtrbr2/message-ia-bot/internal/session"
	"github.com/Vtrbr2/message-ia-bot/internal/wa"
	"github.com/Vtrbr2/message-ia-bot/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.AppEnv)
	logger.Info("starting message-ia-bot", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	loc, err := time.LoadLocation(cfg.StatsTimezone)
	if err != nil {
		logger.Warn("invalid stats timezone, using UTC", "timezone", cfg.StatsTimezone, "error", err)
		loc = time.UTC
	}

	var store repo.Store
	if cfg.DatabaseURL != "" {
		store, err = repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, loc, logger)
	} else {
		store, err = repo.NewSQLite(ctx, cfg.SQLitePath, loc, logger)
	}
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	redisClient := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed closing redis", "error", err)
		}
	}()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis ping failed, caching disabled in practice", "error", err)
	}

	nluClient := nlu.New(nlu.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	}, logger, metricRegistry, redisClient)

	// A transport failure is not fatal: the read API keeps serving and the
	// health endpoint reports Disconnected.
	waClient, err := wa.New(ctx, wa.Config{
		StorePath: cfg.WhatsAppStorePath,
		LogLevel:  cfg.WhatsAppLogLevel,
		Metrics:   metricRegistry,
	}, logger)
	if err != nil {
		logger.Error("whatsapp client init failed, serving read API only", "error", err)
		waClient = nil
	} else {
		defer waClient.Close()
	}

	if waClient != nil {
		sessions := session.NewStore()
		engine := convo.New(store, sessions, waClient, nluClient, metricRegistry, logger, convo.EngineConfig{
			Merchant: pix.Merchant{
				Name: cfg.PixMerchantName,
				City: cfg.PixMerchantCity,
				Key:  cfg.PixMerchantKey,
			},
			Location: loc,
		})
		waClient.SetMessageProcessor(engine)

		go func() {
			if err := waClient.Start(ctx); err != nil {
				logger.Error("whatsapp client stopped", "error", err)
			}
		}()
	}

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Dependencies{
		Store:     store,
		Transport: waClient,
		Redis:     redisClient,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
