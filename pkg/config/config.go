package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for catalog-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL with pgvector)
	Database DatabaseConfig `yaml:"database"`

	// AI provider (OpenAI-compatible endpoint for embeddings and enrichment)
	AI AIConfig `yaml:"ai"`

	// Resilience policy for external service calls
	Resilience ResilienceConfig `yaml:"resilience"`

	// Embedding batch behavior
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Product enrichment batch behavior
	Enrichment EnrichmentConfig `yaml:"enrichment"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSURL is the JWKS endpoint of the identity provider.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`

	// Issuer is the expected token issuer.
	Issuer string `yaml:"issuer" env:"AUTH_ISSUER" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"catalog"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"catalog_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// AIConfig holds the OpenAI-compatible provider endpoints and models.
type AIConfig struct {
	Endpoint       string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:"https://api.openai.com/v1"`
	APIKey         string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	Model          string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o-mini"`
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-004"`
}

// ResilienceConfig configures the circuit breaker and retry policy that
// wrap every external service call.
type ResilienceConfig struct {
	// BreakerThreshold is the number of consecutive failures before the circuit trips.
	BreakerThreshold int `yaml:"breaker_threshold" env:"RESILIENCE_BREAKER_THRESHOLD" env-default:"5"`
	// BreakerResetSeconds is how long the circuit stays open before a trial request.
	BreakerResetSeconds int `yaml:"breaker_reset_seconds" env:"RESILIENCE_BREAKER_RESET_SECONDS" env-default:"60"`
	// MaxRetries bounds transparent retries of transient failures.
	MaxRetries int `yaml:"max_retries" env:"RESILIENCE_MAX_RETRIES" env-default:"3"`
}

// EmbeddingConfig configures embedding generation.
type EmbeddingConfig struct {
	// Dimension is the required embedding vector length. A provider response
	// of any other length is a hard failure.
	Dimension int `yaml:"dimension" env:"EMBEDDING_DIMENSION" env-default:"768"`
	// BatchConcurrency bounds parallel embedding calls in batch operations.
	BatchConcurrency int `yaml:"batch_concurrency" env:"EMBEDDING_BATCH_CONCURRENCY" env-default:"5"`
	// ItemTimeoutSeconds is the per-text timeout in batch operations.
	ItemTimeoutSeconds int `yaml:"item_timeout_seconds" env:"EMBEDDING_ITEM_TIMEOUT_SECONDS" env-default:"30"`
}

// EnrichmentConfig configures AI product enrichment.
type EnrichmentConfig struct {
	// BatchConcurrency bounds parallel enrichment calls in batch operations.
	BatchConcurrency int `yaml:"batch_concurrency" env:"ENRICHMENT_BATCH_CONCURRENCY" env-default:"5"`
	// ItemTimeoutSeconds is the per-product timeout in batch operations.
	ItemTimeoutSeconds int `yaml:"item_timeout_seconds" env:"ENRICHMENT_ITEM_TIMEOUT_SECONDS" env-default:"60"`
	// MaxBatchSize caps the number of products per batch request.
	MaxBatchSize int `yaml:"max_batch_size" env:"ENRICHMENT_MAX_BATCH_SIZE" env-default:"20"`
}

// ItemTimeout returns the per-text timeout as a duration.
func (c *EmbeddingConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSeconds) * time.Second
}

// ItemTimeout returns the per-product timeout as a duration.
func (c *EnrichmentConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSeconds) * time.Second
}

// BreakerReset returns the circuit breaker cooldown as a duration.
func (c *ResilienceConfig) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Auth.EnableVerification && c.Auth.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth verification is enabled")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
