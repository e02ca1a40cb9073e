package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/atlasrisk/tariffwatch/internal/domain"
)

// Config holds application configuration
type Config struct {
	DatabasePath         string
	ArtifactsDir         string
	PanelStart           domain.Month // earliest month in training panels
	MassRolloutThreshold int
	LogLevel             string
	RetrainSchedule      string // cron spec used by --watch mode
	S3Bucket             string // optional; empty disables artifact backup
	S3Prefix             string
	DevMode              bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	panelStart, err := domain.ParseMonth(getEnv("PANEL_START", "2024-11"))
	if err != nil {
		return nil, fmt.Errorf("invalid PANEL_START: %w", err)
	}

	cfg := &Config{
		DatabasePath:         getEnv("DATABASE_PATH", "./data/tariffwatch.db"),
		ArtifactsDir:         getEnv("ARTIFACTS_DIR", "./artifacts"),
		PanelStart:           panelStart,
		MassRolloutThreshold: getEnvAsInt("MASS_ROLLOUT_THRESHOLD", 10),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		RetrainSchedule:      getEnv("RETRAIN_SCHEDULE", "0 0 6 * * *"), // 06:00 daily
		S3Bucket:             getEnv("ARTIFACT_S3_BUCKET", ""),
		S3Prefix:             getEnv("ARTIFACT_S3_PREFIX", "tariffwatch/artifacts"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("ARTIFACTS_DIR is required")
	}
	if c.MassRolloutThreshold < 2 {
		return fmt.Errorf("MASS_ROLLOUT_THRESHOLD must be >= 2, got %d", c.MassRolloutThreshold)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
