package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/monitoring"
	"github.com/Barrhann/notebook-analyzer-v2-sub000/internal/server"
)

func main() {
	// A missing .env is fine; the environment itself still applies.
	_ = godotenv.Load()

	logger := monitoring.NewLogger()
	slog.SetDefault(logger.Logger)

	cfg := server.DefaultConfig()
	cfg.Addr = ":" + getEnvOrDefault("PORT", "8080")
	cfg.DataDir = getEnvOrDefault("DATA_DIR", "./data")
	cfg.ConfigPath = os.Getenv("NOTEBOOK_ANALYZER_CONFIG")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	srv, err := server.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Ignoring non-integer environment value", "key", key, "value", value)
		return defaultValue
	}
	return parsed
}
