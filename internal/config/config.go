// Package config loads process settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendBigQuery = "bigquery"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	StoreBackend  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	BQProjectID   string
	BQDatasetID   string

	RedisAddr string
	LockTTL   time.Duration

	JWTSecret           string
	AllowHeaderIdentity bool
	CORSOrigin          string

	GCSBucket        string
	ExportDir        string
	NotionToken      string
	NotionDatabaseID string
	GeminiModel      string
}

// Load reads .env when present and builds the config from the environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the current environment only.
func FromEnv() (*Config, error) {
	ttl, err := time.ParseDuration(getEnv("LOCK_TTL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: LOCK_TTL: %w", err)
	}

	allowHeader, err := strconv.ParseBool(getEnv("ALLOW_HEADER_IDENTITY", "false"))
	if err != nil {
		return nil, fmt.Errorf("FromEnv: ALLOW_HEADER_IDENTITY: %w", err)
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "finance"),
		BQProjectID:   getEnv("BQ_PROJECT_ID", ""),
		BQDatasetID:   getEnv("BQ_DATASET_ID", "finance"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		LockTTL:   ttl,

		JWTSecret:           getEnv("JWT_SECRET", ""),
		AllowHeaderIdentity: allowHeader,
		CORSOrigin:          getEnv("CORS_ORIGIN", "*"),

		GCSBucket:        getEnv("GCS_BUCKET", ""),
		ExportDir:        getEnv("EXPORT_DIR", "exports"),
		NotionToken:      getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", ""),
	}, nil
}

// Validate checks the settings the API server needs.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.JWTSecret == "" && !c.AllowHeaderIdentity {
		return errors.New("JWT_SECRET is required unless ALLOW_HEADER_IDENTITY is enabled")
	}
	return nil
}

// ValidateStore checks that the selected backend has what it needs to
// connect and that locks can expire.
func (c *Config) ValidateStore() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo backend")
		}
	case BackendBigQuery:
		if c.BQProjectID == "" {
			return errors.New("BQ_PROJECT_ID is required for the bigquery backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
