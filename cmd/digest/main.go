// Command digest builds and mails today's report once and exits, for use
// from cron or an external scheduler.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"sigevent-service/internal/config"
	"sigevent-service/internal/db"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/providers"
	"sigevent-service/internal/report"
	"sigevent-service/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := utils.Retry(logger, "database ping", 5, 2*time.Second, func() error { return dbConn.Ping(ctx) }); err != nil {
		logger.Fatalf("Database unavailable: %v", err)
	}

	email, err := providers.NewEmailTransport(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Email transport init failed: %v", err)
	}

	if err := report.NewDigest(dbConn, email, cfg, logger).Run(ctx); err != nil {
		logger.Errorf("Daily report failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Daily report sent")
}
