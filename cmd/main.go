package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"sigevent-service/internal/api"
	"sigevent-service/internal/config"
	"sigevent-service/internal/db"
	"sigevent-service/internal/kafka"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/notification"
	"sigevent-service/internal/providers"
	"sigevent-service/internal/ratelimit"
	"sigevent-service/internal/report"
	"sigevent-service/internal/tail"
	"sigevent-service/internal/utils"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to log store
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := utils.Retry(logger, "database ping", 10, 3*time.Second, func() error { return dbConn.Ping(ctx) }); err != nil {
		logger.Fatalf("Database unavailable: %v", err)
	}
	if err := dbConn.Migrate(ctx); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}

	// Connect to rate-limit store
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := utils.Retry(logger, "redis ping", 10, 3*time.Second, func() error { return rdb.Ping(ctx).Err() }); err != nil {
		logger.Fatalf("Redis unavailable: %v", err)
	}
	counter := ratelimit.NewCounter(ratelimit.NewRedisStore(rdb, cfg.NotificationTableName), logger)

	// Transports
	email, err := providers.NewEmailTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Email transport init failed: %v", err)
	}
	var chat providers.ChatTransport
	if cfg.Telegram.BotToken != "" {
		tg, err := providers.NewTelegramTransport(cfg.Telegram.BotToken, cfg.Telegram.RateLimit, logger)
		if err != nil {
			logger.Fatalf("Telegram transport init failed: %v", err)
		}
		chat = tg
	}

	// Engine
	hub := tail.NewHub(logger)
	dispatcher := notification.NewDispatcher(email, chat, cfg, logger)
	engine := notification.NewEngine(dbConn, counter, dispatcher, cfg, logger)
	engine.SetObserver(hub)
	digest := report.NewDigest(dbConn, email, cfg, logger)

	var wg sync.WaitGroup

	// Kafka trigger
	consumer, err := kafka.NewConsumer(cfg, engine, logger)
	if err != nil {
		logger.Fatalf("Kafka consumer init failed: %v", err)
	}
	consumer.Start(&wg)

	// Daily digest
	wg.Add(1)
	go func() {
		defer wg.Done()
		report.Schedule(ctx, cfg.Digest.Hour, logger, digest.Run)
	}()

	// API server
	handler := api.NewHandler(engine, digest, hub, logger)
	srv := &http.Server{
		Addr:              cfg.API.Port,
		Handler:           api.NewRouter(handler, logger, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API shutdown failed: %v", err)
	}
	hub.CloseAll()
	consumer.Close()
	wg.Wait()
	logger.Info("Stopped")
}
