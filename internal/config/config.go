// Package config - application configuration via viper.
//
// Priority, highest first: environment variables, config file, defaults.
// Environment variables use the FICORE_ prefix with underscores, e.g.
// FICORE_DATABASE_HOST.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

// AppConfig identifies the process.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
}

// IsProduction reports whether the environment is production.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig holds redis settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig holds broker settings.
type NATSConfig struct {
	URL        string `mapstructure:"url"`
	ClientName string `mapstructure:"client_name"`
}

// AuthConfig holds JWT verification settings. Tokens are issued by the main
// FiCore app; this service only verifies.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ProvidersConfig holds the VAS provider credentials.
type ProvidersConfig struct {
	Monnify MonnifyConfig `mapstructure:"monnify"`
	Peyflex PeyflexConfig `mapstructure:"peyflex"`
}

// MonnifyConfig holds Monnify settings.
type MonnifyConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	SecretKey     string `mapstructure:"secret_key"`
	ContractCode  string `mapstructure:"contract_code"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// PeyflexConfig holds Peyflex settings.
type PeyflexConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// WorkerConfig holds the worker process settings.
type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// CORSConfig holds the allowed origins for production.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the config file (if present), environment variables, and
// defaults, in that priority order.
func Load(configPath, configName string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/ficore-vas")

	v.SetEnvPrefix("FICORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file: defaults plus env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ficore-vas")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "ficore_vas")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.client_name", "ficore-vas")

	v.SetDefault("auth.jwt_secret", "change-me-in-production")

	v.SetDefault("providers.monnify.base_url", "https://api.monnify.com")
	v.SetDefault("providers.peyflex.base_url", "https://peyflex.com")

	v.SetDefault("worker.pool_size", 4)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.host", "FICORE_DATABASE_HOST", "DB_HOST")
	_ = v.BindEnv("database.port", "FICORE_DATABASE_PORT", "DB_PORT")
	_ = v.BindEnv("database.user", "FICORE_DATABASE_USER", "DB_USER")
	_ = v.BindEnv("database.password", "FICORE_DATABASE_PASSWORD", "DB_PASSWORD")
	_ = v.BindEnv("database.database", "FICORE_DATABASE_DATABASE", "DB_NAME")

	_ = v.BindEnv("redis.addr", "FICORE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("nats.url", "FICORE_NATS_URL", "NATS_URL")

	_ = v.BindEnv("auth.jwt_secret", "FICORE_AUTH_JWT_SECRET", "JWT_SECRET")

	_ = v.BindEnv("providers.monnify.api_key", "FICORE_PROVIDERS_MONNIFY_API_KEY", "MONNIFY_API_KEY")
	_ = v.BindEnv("providers.monnify.secret_key", "FICORE_PROVIDERS_MONNIFY_SECRET_KEY", "MONNIFY_SECRET_KEY")
	_ = v.BindEnv("providers.monnify.contract_code", "FICORE_PROVIDERS_MONNIFY_CONTRACT_CODE", "MONNIFY_CONTRACT_CODE")
	_ = v.BindEnv("providers.monnify.webhook_secret", "FICORE_PROVIDERS_MONNIFY_WEBHOOK_SECRET", "MONNIFY_WEBHOOK_SECRET")
	_ = v.BindEnv("providers.peyflex.api_key", "FICORE_PROVIDERS_PEYFLEX_API_KEY", "PEYFLEX_API_KEY")

	_ = v.BindEnv("server.port", "FICORE_SERVER_PORT", "PORT")
	_ = v.BindEnv("app.environment", "FICORE_APP_ENVIRONMENT", "ENVIRONMENT", "ENV")
}

// Validate rejects configurations that cannot run safely.
func (c *Config) Validate() error {
	if c.App.IsProduction() {
		if c.Auth.JWTSecret == "change-me-in-production" {
			return fmt.Errorf("JWT secret must be changed in production")
		}
		if c.Providers.Monnify.WebhookSecret == "" {
			return fmt.Errorf("monnify webhook secret is required in production")
		}
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Worker.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	return nil
}

// Test returns a configuration for tests.
func Test() *Config {
	return &Config{
		App: AppConfig{Name: "ficore-vas", Version: "test", Environment: "test"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Database:       "ficore_vas_test",
			SSLMode:        "disable",
			MaxConnections: 5,
			MinConnections: 1,
		},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		NATS:   NATSConfig{URL: "nats://localhost:4222", ClientName: "ficore-vas-test"},
		Auth:   AuthConfig{JWTSecret: "test-secret"},
		Worker: WorkerConfig{PoolSize: 1},
		Log:    LogConfig{Level: "error", Format: "text"},
	}
}
