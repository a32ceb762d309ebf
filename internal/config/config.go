// Package config loads service configuration from the environment. A .env file in
// the working directory is read first when present; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Secret manager backends
const (
	SecretsBackendLocal = "local"
	SecretsBackendAWS   = "aws"
	SecretsBackendVault = "vault"
)

// Config holds all application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" env-default:"development" env-description:"development or production"`

	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Gateway       GatewayConfig
	Secrets       SecretsConfig
	RateLimit     RateLimitConfig
	Logger        LoggerConfig
	ProviderCache ProviderCacheConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port        int    `env:"SERVER_PORT" env-default:"8080"`
	MetricsPort int    `env:"METRICS_PORT" env-default:"9090"`

	// PublicBaseURL is the externally reachable origin the gateway calls back on
	PublicBaseURL string `env:"PUBLIC_BASE_URL" env-description:"externally reachable base URL for gateway callbacks"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	// URL takes precedence over the discrete fields when set
	URL string `env:"DATABASE_URL"`

	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     int    `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Database string `env:"DB_NAME" env-default:"smilepay"`
	SSLMode  string `env:"DB_SSL_MODE" env-default:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" env-default:"25"`
	MinConns int32  `env:"DB_MIN_CONNS" env-default:"5"`
}

// RedisConfig enables the distributed transaction lock when URL is set
type RedisConfig struct {
	URL     string        `env:"REDIS_URL" env-description:"redis:// URL; empty uses the in-process lock"`
	LockTTL time.Duration `env:"REDIS_LOCK_TTL" env-default:"30s"`
}

// GatewayConfig holds SmilePay client configuration
type GatewayConfig struct {
	Timeout   time.Duration `env:"SMILEPAY_TIMEOUT" env-default:"10s"`
	UserAgent string        `env:"SMILEPAY_USER_AGENT" env-default:"smilepay-service/1.0"`

	CircuitMaxFailures uint32        `env:"SMILEPAY_CIRCUIT_MAX_FAILURES" env-default:"5"`
	CircuitOpenTimeout time.Duration `env:"SMILEPAY_CIRCUIT_OPEN_TIMEOUT" env-default:"30s"`
}

// SecretsConfig selects where provider credentials are read from
type SecretsConfig struct {
	Backend string `env:"SECRETS_BACKEND" env-default:"local" env-description:"local, aws or vault"`

	LocalPath string `env:"SECRETS_LOCAL_PATH" env-default:"./secrets"`

	AWSRegion   string `env:"AWS_REGION" env-default:"ap-northeast-1"`
	AWSProfile  string `env:"AWS_PROFILE"`
	AWSEndpoint string `env:"AWS_SECRETS_ENDPOINT"`

	VaultAddress    string `env:"VAULT_ADDR"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultAuthMethod string `env:"VAULT_AUTH_METHOD" env-default:"token"`
	VaultRoleID     string `env:"VAULT_ROLE_ID"`
	VaultSecretID   string `env:"VAULT_SECRET_ID"`
	VaultK8sRole    string `env:"VAULT_K8S_ROLE"`
	VaultNamespace  string `env:"VAULT_NAMESPACE"`
	VaultMountPath  string `env:"VAULT_MOUNT_PATH" env-default:"secret"`
	VaultKVVersion  string `env:"VAULT_KV_VERSION" env-default:"v2"`
}

// RateLimitConfig bounds callback traffic per client address
type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" env-default:"20"`
	Burst             int     `env:"RATE_LIMIT_BURST" env-default:"40"`
	TrustForwardedFor bool    `env:"RATE_LIMIT_TRUST_FORWARDED_FOR" env-default:"false"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn, error"`
}

// ProviderCacheConfig sizes the resolved provider credential cache
type ProviderCacheConfig struct {
	TTL     time.Duration `env:"PROVIDER_CACHE_TTL" env-default:"5m"`
	MaxSize int           `env:"PROVIDER_CACHE_MAX_SIZE" env-default:"1000"`
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabase reads only the database section from the environment
func LoadDatabase() (*DatabaseConfig, error) {
	cfg := &DatabaseConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

// Usage describes every supported environment variable
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Server.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL is required")
	}
	u, err := url.Parse(c.Server.PublicBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.Server.PublicBaseURL)
	}
	if c.IsProduction() && u.Scheme != "https" {
		return errors.New("PUBLIC_BASE_URL must use https in production")
	}

	if c.Database.URL == "" && c.Database.Password == "" {
		return errors.New("DATABASE_URL or DB_PASSWORD is required")
	}

	if c.Gateway.Timeout <= 0 {
		return errors.New("SMILEPAY_TIMEOUT must be positive")
	}

	switch c.Secrets.Backend {
	case SecretsBackendLocal:
		if c.IsProduction() {
			return errors.New("SECRETS_BACKEND=local is not allowed in production")
		}
	case SecretsBackendAWS:
		if c.Secrets.AWSRegion == "" {
			return errors.New("AWS_REGION is required for the aws secrets backend")
		}
	case SecretsBackendVault:
		if c.Secrets.VaultAddress == "" {
			return errors.New("VAULT_ADDR is required for the vault secrets backend")
		}
	default:
		return fmt.Errorf("unknown SECRETS_BACKEND %q", c.Secrets.Backend)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the listen address of the API server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
