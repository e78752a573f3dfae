// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for the database and backup staging (always absolute)
	Port     int
	LogLevel string
	DevMode  bool
	Backup   BackupConfig
}

// BackupConfig holds database backup configuration.
// Backups stay local unless an S3 bucket is configured.
type BackupConfig struct {
	Enabled             bool
	Schedule            string // cron expression for the nightly backup job
	S3Bucket            string // empty disables the upload step
	S3Endpoint          string // optional custom endpoint (S3-compatible stores)
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string
	RetainLocal         int // number of local snapshots to keep
	RetentionDays       int // remote archives older than this are rotated out
	MaintenanceSchedule string // cron expression for WAL checkpoint / integrity check
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Data directory: STUDYFLOW_DATA_DIR, defaulting to ~/.studyflow,
	// always resolved to an absolute path and created up front.
	dataDir := getEnv("STUDYFLOW_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".studyflow")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("STUDYFLOW_PORT", 8420),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Backup: BackupConfig{
			Enabled:             getEnvAsBool("BACKUP_ENABLED", true),
			Schedule:            getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"), // 03:30 daily
			S3Bucket:            getEnv("BACKUP_S3_BUCKET", ""),
			S3Endpoint:          getEnv("BACKUP_S3_ENDPOINT", ""),
			S3Region:            getEnv("BACKUP_S3_REGION", "auto"),
			S3AccessKey:         getEnv("BACKUP_S3_ACCESS_KEY", ""),
			S3SecretKey:         getEnv("BACKUP_S3_SECRET_KEY", ""),
			RetainLocal:         getEnvAsInt("BACKUP_RETAIN_LOCAL", 7),
			RetentionDays:       getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
			MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * *"), // 04:00 daily
		},
	}

	return cfg, nil
}

// DatabasePath returns the path of the application database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "studyflow.db")
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
