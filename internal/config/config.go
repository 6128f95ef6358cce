// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/polygon-manager/backend/internal/geometry"
)

// Config holds all configuration for the application.
type Config struct {
	// Role specifies the service role: "handler" or "gateway"
	Role string

	// Server configuration
	ServerPort string

	// Handler service URL (used by gateway to forward requests)
	HandlerURL string

	// Storage location: postgres:// URL, sqlite:// URL or a file path
	DatabaseURL string

	// Redis configuration; empty disables the list cache
	RedisURL string

	// Environment
	Environment string

	// Polygon limits
	Limits geometry.Limits

	// Artificial latency applied to create and delete, and to list when
	// DelayList is set
	OperationDelay time.Duration
	DelayList      bool

	// Optional directory with the drawing page assets
	StaticDir string

	// OTLP/HTTP endpoint for traces; empty keeps tracing local
	OTLPEndpoint string
}

// fileConfig is the shape of the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Limits         geometry.Limits `yaml:"limits"`
	OperationDelay string          `yaml:"operation_delay"`
	DelayList      *bool           `yaml:"delay_list"`
}

// New creates a new Config with values from environment variables or defaults.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func New() (*Config, error) {
	_ = godotenv.Load()

	defaults := geometry.DefaultLimits()
	cfg := &Config{
		Role:        getEnv("SERVICE_ROLE", "handler"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		HandlerURL:  getEnv("HANDLER_URL", "http://handler:8081"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://./data/polygon.db"),
		RedisURL:    getEnv("REDIS_URL", ""),
		Environment: getEnv("ENVIRONMENT", "development"),
		Limits: geometry.Limits{
			MaxCoordinate:  getEnvFloat("MAX_COORDINATE", defaults.MaxCoordinate),
			MaxNameLength:  getEnvInt("MAX_NAME_LENGTH", defaults.MaxNameLength),
			MaxPointsCount: getEnvInt("MAX_POINTS_COUNT", defaults.MaxPointsCount),
		},
		OperationDelay: getEnvDuration("API_DELAY", time.Duration(getEnvInt("API_DELAY_SECONDS", 5))*time.Second),
		DelayList:      getEnvBool("API_DELAY_LIST", true),
		StaticDir:      getEnv("STATIC_DIR", ""),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile overlays non-zero values from a YAML file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.Limits.MaxCoordinate > 0 {
		c.Limits.MaxCoordinate = fc.Limits.MaxCoordinate
	}
	if fc.Limits.MaxNameLength > 0 {
		c.Limits.MaxNameLength = fc.Limits.MaxNameLength
	}
	if fc.Limits.MaxPointsCount > 0 {
		c.Limits.MaxPointsCount = fc.Limits.MaxPointsCount
	}
	if fc.OperationDelay != "" {
		d, err := time.ParseDuration(fc.OperationDelay)
		if err != nil {
			return fmt.Errorf("invalid operation_delay %q: %w", fc.OperationDelay, err)
		}
		c.OperationDelay = d
	}
	if fc.DelayList != nil {
		c.DelayList = *fc.DelayList
	}
	return nil
}

// IsGateway returns true if the service is running as an API gateway.
func (c *Config) IsGateway() bool {
	return c.Role == "gateway"
}

// IsHandler returns true if the service is running as a handler.
func (c *Config) IsHandler() bool {
	return c.Role == "handler"
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration syntax ("250ms") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
