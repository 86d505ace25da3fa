package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/agent"
	"github.com/voxlane/voice-platform/internal/config"
	"github.com/voxlane/voice-platform/internal/tasks"
	"github.com/voxlane/voice-platform/pkg/logger"
	"github.com/voxlane/voice-platform/pkg/redis"
)

func main() {
	// .env is for local development only. Environment variables set by the
	// deployment always win because godotenv does not override them.
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}

	cfg := config.LoadFromEnv()
	fmt.Printf("Starting voice agent worker (instance: %s)\n", cfg.InstanceID)

	workerCfg := agent.Config{
		ServerAPIURL:     config.GetEnvOrDefault("SERVER_API_URL", cfg.PublicBaseURL),
		InternalAPIKey:   cfg.InternalAPIKey,
		LiveKitServerURL: cfg.LiveKitServerURL,
		LiveKitAPIKey:    cfg.LiveKitAPIKey,
		LiveKitAPISecret: cfg.LiveKitAPISecret,
		OpenAIAPIKey:     cfg.OpenAIAPIKey,
	}
	if workerCfg.LiveKitServerURL == "" || workerCfg.LiveKitAPIKey == "" {
		log.Fatal("LIVEKIT_SERVER_URL and LIVEKIT_API_KEY are required")
	}
	if workerCfg.OpenAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	redisSvc, err := redis.NewRedisService(&redis.RedisConfig{
		Host:     config.GetEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     config.GetEnvOrDefault("REDIS_PORT", "6379"),
		Password: config.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       config.GetEnvAsIntOrDefault("REDIS_DB", 0),
	})
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisSvc.Close()

	worker := agent.NewWorker(workerCfg, tasks.NewRedisBus(redisSvc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Base().Info("Worker initialized",
		zap.String("server_api_url", workerCfg.ServerAPIURL),
		zap.String("livekit_url", workerCfg.LiveKitServerURL))

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Worker failed: %v", err)
	}
	logger.Base().Info("Worker stopped")
}
