package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Database
	DatabasePath string

	// Record watching
	WatchIntervalSeconds int

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_BOT_TOKEN"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Parse watch interval
	intervalStr := getEnvOrDefault("WATCH_INTERVAL_SECONDS", "120")
	interval, err := strconv.Atoi(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WATCH_INTERVAL_SECONDS: %w", err)
	}
	cfg.WatchIntervalSeconds = interval

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
