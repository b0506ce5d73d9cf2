// Package config provides configuration management for the paper reader.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Papers    PapersConfig
	Auth      AuthConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds SQLite configuration
type DatabaseConfig struct {
	Path        string
	BusyTimeout time.Duration
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	Timeout      time.Duration // Read and write timeout per command
}

// Enabled reports whether a Redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// PapersConfig holds the per-day JSON paper store configuration
type PapersConfig struct {
	DataDir         string
	CacheSize       int
	ReindexInterval time.Duration
}

// AuthConfig holds session and no-auth mode configuration
type AuthConfig struct {
	NoAuthMode      bool
	DefaultUsername string
	DefaultPassword string
	SecretKey       string
	SessionTTL      time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds rate limiting configuration for the auth endpoints
type RateLimitConfig struct {
	AuthRPS   int
	AuthBurst int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env is optional; variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "5000"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Path:        getEnv("DATABASE_PATH", "instance/app.db"),
			BusyTimeout: getEnvAsDuration("DATABASE_BUSY_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", ""),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			Timeout:      getEnvAsDuration("REDIS_TIMEOUT", 3*time.Second),
		},
		Papers: PapersConfig{
			DataDir:         getEnv("PAPERS_DATA_DIR", "arXivDaily-data"),
			CacheSize:       getEnvAsInt("PAPERS_CACHE_SIZE", 64),
			ReindexInterval: getEnvAsDuration("PAPERS_REINDEX_INTERVAL", 10*time.Minute),
		},
		Auth: AuthConfig{
			NoAuthMode:      getEnvAsBool("NO_AUTH_MODE", false),
			DefaultUsername: getEnv("DEFAULT_USER_USERNAME", "guest"),
			DefaultPassword: getEnv("DEFAULT_USER_PASSWORD", "guest"),
			SecretKey:       getEnv("SECRET_KEY", "dev-secret-key"),
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			AuthRPS:   getEnvAsInt("RATE_LIMIT_AUTH_RPS", 5),
			AuthBurst: getEnvAsInt("RATE_LIMIT_AUTH_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts 1/true/yes/on (case-insensitive) as true
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if valueStr == "" {
		return defaultValue
	}
	switch valueStr {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
