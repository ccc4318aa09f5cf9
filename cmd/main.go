package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"insurance-ledger/internal/config"
	"insurance-ledger/internal/database/minio"
	"insurance-ledger/internal/database/postgres"
	"insurance-ledger/internal/database/redis"
	"insurance-ledger/internal/event"
	"insurance-ledger/internal/handlers"
	"insurance-ledger/internal/repository"
	"insurance-ledger/internal/services"
	"insurance-ledger/internal/worker"

	"github.com/gofiber/fiber/v3"
	goredis "github.com/redis/go-redis/v9"
)

func setupLogging() (*os.File, error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Recovered from panic: %v\n", r)
		}
	}()

	logDir := filepath.Join("/insurance", "log", "ledger_service")
	fmt.Println("Log directory:", logDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		fmt.Printf("Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg := config.New()
	slog.Info("connecting to PostgreSQL",
		"host", cfg.PostgresCfg.Host, "port", cfg.PostgresCfg.Port,
		"user", cfg.PostgresCfg.Username, "dbname", cfg.PostgresCfg.DBname)

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("initial database connection failed, retrying until available", "error", err)
		db = postgres.RetryConnect(30*time.Second, cfg.PostgresCfg)
	}

	var cacheClient *goredis.Client
	redisClient, err := redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
	if err != nil {
		slog.Warn("redis unavailable, snapshot cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheClient = redisClient.GetClient()
	}

	var publisher services.ClaimEventPublisher
	var claimPublisher *event.ClaimFiledPublisher
	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Warn("rabbitmq unavailable, claim events disabled", "error", err)
	} else {
		defer rabbitConn.Close()
		claimPublisher = event.NewClaimFiledPublisher(rabbitConn)
		publisher = claimPublisher
	}

	minioClient, err := minio.NewMinioClient(cfg.MinioCfg)
	if err != nil {
		slog.Warn("minio unavailable, evidence endpoints disabled", "error", err)
	}

	policyRepo := repository.NewPostgresPolicyRepository(db, cacheClient)
	claimRepo := repository.NewPostgresClaimRepository(db, cacheClient)
	escrowRepo := repository.NewPostgresEscrowRepository(db)

	ledger := services.NewLedgerService(escrowRepo)
	authorizer := services.NewAuthorizer(cfg.EngineCfg.AdjudicatorIDs)
	policyService := services.NewPolicyService(policyRepo, ledger)
	claimService := services.NewClaimService(claimRepo, policyRepo, authorizer, publisher)

	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	sweeper := worker.NewExpirySweeper(policyService, cfg.EngineCfg.ExpirySweepInterval)
	go sweeper.Run(sweeperCtx)

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Insurance ledger service is healthy")
	})

	handlers.NewPolicyHandler(policyService).Register(app)
	handlers.NewClaimHandler(claimService).Register(app)
	if minioClient != nil {
		handlers.NewEvidenceHandler(minioClient).Register(app)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()
	slog.Info("insurance ledger service started", "port", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	if claimPublisher != nil {
		stats := claimPublisher.Stats()
		slog.Info("claim publisher stats", "published", stats.Published, "failed", stats.Failed)
	}
	sweeper.Stop()
	if err := app.Shutdown(); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
}
