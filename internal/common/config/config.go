package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/penguinmails/tenantcore/pkg/helper"
)

type (
	// Config is the top-level configuration for the tenantcore server.
	Config struct {
		Server    ServerConfig    `yaml:"server"`
		Logger    LoggerConfig    `yaml:"logger"`
		Database  DatabaseConfig  `yaml:"database"`
		Auth      AuthConfig      `yaml:"auth"`
		Session   SessionConfig   `yaml:"session"`
		RateLimit RateLimitConfig `yaml:"rate_limit"`
		Recovery  RecoveryConfig  `yaml:"recovery"`
		Metrics   MetricsConfig   `yaml:"metrics"`
	}

	// ServerConfig represents the HTTP server configuration.
	ServerConfig struct {
		Port            int           `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}

	// DatabaseConfig represents the database configuration.
	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	// AuthConfig defines how inbound credentials are validated.
	AuthConfig struct {
		SecretKey string        `yaml:"secret_key"`
		Duration  time.Duration `yaml:"duration"`
	}

	// SessionConfig controls the session resolver cache.
	SessionConfig struct {
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		CacheSize     int           `yaml:"cache_size"`
		SweepInterval time.Duration `yaml:"sweep_interval"`
	}

	// RateLimitConfig controls the fixed-window rate limiter.
	RateLimitConfig struct {
		Enabled bool          `yaml:"enabled"`
		Backend string        `yaml:"backend"` // memory or redis
		Window  time.Duration `yaml:"window"`
		Max     int64         `yaml:"max"`
		Redis   RedisConfig   `yaml:"redis"`
	}

	// RedisConfig represents a Redis connection.
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// RecoveryConfig controls the integrity sweeper.
	RecoveryConfig struct {
		Enabled        bool          `yaml:"enabled"`
		Schedule       string        `yaml:"schedule"` // cron spec
		PointRetention time.Duration `yaml:"point_retention"`
	}

	// MetricsConfig controls the Prometheus exposition endpoint.
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		// For SQLite, DBName is the file path
		return c.DBName
	default:
		return ""
	}
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}
	setDefaults(&cfg)

	return &cfg, cfgPath, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Auth.Duration <= 0 {
		cfg.Auth.Duration = 24 * time.Hour
	}
	if cfg.Session.CacheTTL <= 0 {
		cfg.Session.CacheTTL = 3 * time.Minute
	}
	if cfg.Session.CacheSize <= 0 {
		cfg.Session.CacheSize = 4096
	}
	if cfg.Session.SweepInterval <= 0 {
		cfg.Session.SweepInterval = time.Minute
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.RateLimit.Max <= 0 {
		cfg.RateLimit.Max = 100
	}
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = "memory"
	}
	if cfg.Recovery.Schedule == "" {
		cfg.Recovery.Schedule = "@hourly"
	}
	if cfg.Recovery.PointRetention <= 0 {
		cfg.Recovery.PointRetention = 7 * 24 * time.Hour
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "tenantcore"
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
