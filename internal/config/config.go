// Package config loads server configuration from defaults, an optional YAML
// file, and KEYSERVE_-prefixed environment variables, in that order of
// precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Mongo     MongoConfig     `yaml:"mongo" envconfig:"MONGO"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	WebDir          string        `yaml:"web_dir" envconfig:"WEB_DIR"`
}

// MongoConfig contains the license store connection settings.
type MongoConfig struct {
	URI                    string        `yaml:"uri" envconfig:"URI"`
	Database               string        `yaml:"database" envconfig:"DATABASE"`
	Collection             string        `yaml:"collection" envconfig:"COLLECTION"`
	MaxPoolSize            uint64        `yaml:"max_pool_size" envconfig:"MAX_POOL_SIZE"`
	ServerSelectionTimeout time.Duration `yaml:"server_selection_timeout" envconfig:"SERVER_SELECTION_TIMEOUT"`
}

// SecurityConfig contains admin authentication and request protection.
// AdminSecretHash, when set, is a bcrypt hash and takes precedence over the
// plaintext AdminSecret.
type SecurityConfig struct {
	AdminUsername   string          `yaml:"admin_username" envconfig:"ADMIN_USERNAME"`
	AdminSecret     string          `yaml:"admin_secret" envconfig:"ADMIN_SECRET"`
	AdminSecretHash string          `yaml:"admin_secret_hash" envconfig:"ADMIN_SECRET_HASH"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig toggles trace export.
type TelemetryConfig struct {
	TracingEnabled bool `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Mongo: MongoConfig{
			URI:                    "mongodb://localhost:27017",
			Database:               "pfizer_licenses",
			Collection:             "licenses",
			MaxPoolSize:            100,
			ServerSelectionTimeout: 5 * time.Second,
		},
		Security: SecurityConfig{
			AdminUsername: "admin",
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/keyserve.log",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// KEYSERVE_CONFIG_FILE (or ./config.yaml when present), then environment.
func Load() (*Config, error) {
	cfg := Default()

	configFile := os.Getenv("KEYSERVE_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("KEYSERVE", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo database is required")
	}
	if c.Security.AdminUsername == "" {
		return fmt.Errorf("admin username is required")
	}
	if c.Security.AdminSecret == "" && c.Security.AdminSecretHash == "" {
		return fmt.Errorf("admin secret (or secret hash) is required")
	}
	return nil
}
