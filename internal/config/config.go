// Package config provides configuration management functionality.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/harvest/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for the database and backups (always absolute)
	DBFile           string // SQLite database path (time series)
	CacheDBFile      string // SQLite client data cache path
	APIKey           string // AlphaVantage API key
	AdminPassword    string
	JWTSecret        string
	LogLevel         string
	Port             int
	DevMode          bool
	SeedTickers      []string
	AutoFetch        bool // Fetch unknown tickers on demand during a backtest
	RefreshSchedule  string
	BatchConcurrency int
	Backup           BackupConfig
}

// BackupConfig holds database backup settings
type BackupConfig struct {
	Schedule      string
	Keep          int
	S3Bucket      string
	S3Region      string
	S3Endpoint    string // Optional, for S3-compatible stores
	S3AccessKeyID string
	S3SecretKey   string
}

// S3Enabled reports whether an upload target is configured.
func (b BackupConfig) S3Enabled() bool {
	return b.S3Bucket != "" && b.S3AccessKeyID != "" && b.S3SecretKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		jwtSecret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
	}

	cfg := &Config{
		DataDir:          absDataDir,
		DBFile:           getEnv("DB_FILE", filepath.Join(absDataDir, "sqlite.db")),
		CacheDBFile:      getEnv("CACHE_DB_FILE", filepath.Join(absDataDir, "cache.db")),
		APIKey:           getEnv("API_KEY", ""),
		AdminPassword:    getEnv("ADMIN_PASS", "admin"),
		JWTSecret:        jwtSecret,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		Port:             getEnvAsInt("GO_PORT", 8000),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		SeedTickers:      utils.ParseTickers(getEnv("SEED_TICKERS", "VTI")),
		AutoFetch:        getEnvAsBool("AUTO_FETCH", false),
		RefreshSchedule:  getEnv("REFRESH_SCHEDULE", "0 0 6 * * SUN"),
		BatchConcurrency: getEnvAsInt("BATCH_CONCURRENCY", 4),
		Backup: BackupConfig{
			Schedule:      getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			Keep:          getEnvAsInt("BACKUP_KEEP", 7),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			S3Region:      getEnv("S3_REGION", "auto"),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3AccessKeyID: getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY environment variable is required")
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("BATCH_CONCURRENCY must be at least 1, got %d", c.BatchConcurrency)
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("BACKUP_KEEP must be at least 1, got %d", c.Backup.Keep)
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
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
