// Package config loads process configuration from the environment.
// A .env file in the working directory (or up to two parents) is loaded first
// when present; real environment variables always win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Server configures cmd/server.
type Server struct {
	Port        string
	Environment string
	LogLevel    string
	DatabaseURL string

	// JWTSecret enables bearer auth on the transaction API when non-empty.
	JWTSecret string

	// PreviewStrategy is "strict" or "cached".
	PreviewStrategy string
	CachedRangeSize int64

	ShutdownTimeout time.Duration
}

// Client configures cmd/orderctl and any embedding of the client packages.
type Client struct {
	BaseURL     string
	Token       string
	LogLevel    string
	Development bool

	RequestTimeout time.Duration

	// PreviewWait bounds how long a submit waits for an in-flight preview.
	PreviewWait time.Duration
}

// LoadEnvFile loads the nearest .env file, if any.
func LoadEnvFile() error {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// LoadServer reads the server configuration.
func LoadServer() (Server, error) {
	cfg := Server{
		Port:            getEnv("APP_PORT", "8080"),
		Environment:     getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		PreviewStrategy: getEnv("NUMERATOR_STRATEGY", "strict"),
		CachedRangeSize: int64(getEnvInt("NUMERATOR_RANGE_SIZE", 50)),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("required environment variable DATABASE_URL not set")
	}
	if cfg.PreviewStrategy != "strict" && cfg.PreviewStrategy != "cached" {
		return cfg, fmt.Errorf("NUMERATOR_STRATEGY must be strict or cached, got %q", cfg.PreviewStrategy)
	}
	return cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient() Client {
	return Client{
		BaseURL:        getEnv("ORDERNUM_API_URL", "http://localhost:8080"),
		Token:          os.Getenv("ORDERNUM_API_TOKEN"),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
		Development:    getEnv("APP_ENV", "development") == "development",
		RequestTimeout: getEnvDuration("ORDERNUM_REQUEST_TIMEOUT", 10*time.Second),
		PreviewWait:    getEnvDuration("ORDERNUM_PREVIEW_WAIT", 3*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
