package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port" env:"SERVER_PORT"`
		Mode string `yaml:"mode" env:"SERVER_MODE"`
	} `yaml:"server"`

	Backend struct {
		Driver          string `yaml:"driver" env:"BACKEND_DRIVER"`
		SQLitePath      string `yaml:"sqlite_path" env:"BACKEND_SQLITE_PATH"`
		Seed            bool   `yaml:"seed" env:"BACKEND_SEED"`
		ListenReconnect string `yaml:"listen_reconnect" env:"BACKEND_LISTEN_RECONNECT"`
		Database        struct {
			Host            string `yaml:"host" env:"DB_HOST"`
			Port            string `yaml:"port" env:"DB_PORT"`
			User            string `yaml:"user" env:"DB_USER"`
			Password        string `yaml:"password" env:"DB_PASSWORD"`
			DBName          string `yaml:"dbname" env:"DB_NAME"`
			SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
			MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
			MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		} `yaml:"database"`
	} `yaml:"backend"`

	Auth struct {
		Secret             string `yaml:"secret" env:"AUTH_SECRET,JWT_SECRET"`
		Issuer             string `yaml:"issuer" env:"AUTH_ISSUER"`
		TokenTTL           string `yaml:"token_ttl" env:"AUTH_TOKEN_TTL"`
		AllowedEmailDomain string `yaml:"allowed_email_domain" env:"AUTH_ALLOWED_EMAIL_DOMAIN"`
	} `yaml:"auth"`

	Assistant struct {
		APIKey   string `yaml:"api_key" env:"GEMINI_API_KEY,API_KEY"`
		Model    string `yaml:"model" env:"ASSISTANT_MODEL"`
		Timeout  string `yaml:"timeout" env:"ASSISTANT_TIMEOUT"`
		CacheTTL string `yaml:"cache_ttl" env:"ASSISTANT_CACHE_TTL"`
	} `yaml:"assistant"`

	Preferences struct {
		Path string `yaml:"path" env:"PREFERENCES_PATH"`
	} `yaml:"preferences"`

	RateLimit struct {
		RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
		Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// A missing file is fine; defaults and env still apply
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Server defaults
	config.Server.Port = "8080"
	config.Server.Mode = "development"

	// Backend defaults
	config.Backend.Driver = DriverMemory
	config.Backend.SQLitePath = "data/unilife.db"
	config.Backend.Seed = true
	config.Backend.ListenReconnect = "2s"
	config.Backend.Database.Host = "localhost"
	config.Backend.Database.Port = "5432"
	config.Backend.Database.User = "postgres"
	config.Backend.Database.Password = "postgres"
	config.Backend.Database.DBName = "unilife"
	config.Backend.Database.SSLMode = "disable"
	config.Backend.Database.MaxIdleConns = 2
	config.Backend.Database.MaxOpenConns = 10
	config.Backend.Database.ConnMaxLifetime = "1h"

	// Auth defaults
	config.Auth.Issuer = "unilife.app"
	config.Auth.TokenTTL = "1h"
	config.Auth.AllowedEmailDomain = "@unikorestudent.it"

	// Assistant defaults
	config.Assistant.Model = "gemini-3-flash-preview"
	config.Assistant.Timeout = "20s"
	config.Assistant.CacheTTL = "30m"

	config.Preferences.Path = "data/preferences.yaml"

	config.RateLimit.RequestsPerSecond = 20
	config.RateLimit.Burst = 40

	// Logging defaults
	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	switch config.Backend.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown backend driver %q", config.Backend.Driver)
	}

	if config.Backend.Driver == DriverSQLite && config.Backend.SQLitePath == "" {
		return fmt.Errorf("sqlite path is required for the sqlite driver")
	}

	if config.Backend.Driver == DriverPostgres && config.Backend.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}

	if !strings.HasPrefix(config.Auth.AllowedEmailDomain, "@") {
		return fmt.Errorf("allowed email domain must start with @, got %q", config.Auth.AllowedEmailDomain)
	}

	for name, value := range map[string]string{
		"auth token ttl":    config.Auth.TokenTTL,
		"assistant timeout": config.Assistant.Timeout,
		"assistant cache":   config.Assistant.CacheTTL,
		"listen reconnect":  config.Backend.ListenReconnect,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s format: %w", name, err)
		}
	}

	if config.RateLimit.RequestsPerSecond <= 0 || config.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	db := c.Backend.Database
	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
