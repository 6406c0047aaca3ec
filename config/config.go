package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	AWS           AWSConfig
	Cognito       CognitoConfig
	Docs          DocsConfig
	Logs          LogsConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// AWSConfig holds settings shared by every AWS SDK client
type AWSConfig struct {
	Region         string
	ClusterName    string        // Default ECS cluster for metrics queries
	MaxAttempts    int           // SDK retry attempts; 1 disables retries
	RequestTimeout time.Duration // Deadline applied to every provider call
}

// CognitoConfig holds AWS Cognito authentication configuration
type CognitoConfig struct {
	Region              string
	UserPoolID          string
	ClientID            string
	JWKSTimeout         time.Duration
	RefreshOnUnknownKID bool // Opt-in: force one key set refresh when a kid is not cached
}

// DocsConfig holds the S3 documentation source
type DocsConfig struct {
	Bucket     string
	DefaultKey string
	MaxBytes   int64
}

// LogsConfig holds CloudWatch Logs Insights polling settings
type LogsConfig struct {
	PollInterval time.Duration
	PollAttempts int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json, console or text
	MetricsEnabled bool
	MetricsPort    int
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	region := getEnv("AWS_REGION", "us-east-1")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		AWS: AWSConfig{
			Region:         region,
			ClusterName:    getEnv("CLUSTER_NAME", "developer-portal-cluster"),
			MaxAttempts:    getEnvAsInt("AWS_MAX_ATTEMPTS", 1),
			RequestTimeout: getEnvAsDuration("AWS_REQUEST_TIMEOUT", 10*time.Second),
		},
		Cognito: CognitoConfig{
			Region:              getEnv("COGNITO_REGION", region),
			UserPoolID:          getEnv("COGNITO_POOL_ID", ""),
			ClientID:            getEnv("COGNITO_CLIENT_ID", ""),
			JWKSTimeout:         getEnvAsDuration("COGNITO_JWKS_TIMEOUT", 5*time.Second),
			RefreshOnUnknownKID: getEnvAsBool("COGNITO_REFRESH_ON_UNKNOWN_KID", false),
		},
		Docs: DocsConfig{
			Bucket:     getEnv("DOCS_BUCKET", ""),
			DefaultKey: getEnv("DOCS_KEY", "README.md"),
			MaxBytes:   int64(getEnvAsInt("DOCS_MAX_BYTES", 5<<20)),
		},
		Logs: LogsConfig{
			PollInterval: getEnvAsDuration("LOGS_POLL_INTERVAL", 500*time.Millisecond),
			PollAttempts: getEnvAsInt("LOGS_POLL_ATTEMPTS", 12),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set.
// Missing Cognito or bucket settings are tolerated outside production; the
// affected routes report a configuration error per request instead.
func (c *Config) Validate() error {
	if c.AWS.Region == "" {
		return fmt.Errorf("aws region is required")
	}
	if c.AWS.MaxAttempts < 1 {
		return fmt.Errorf("aws max attempts must be at least 1")
	}

	// Cognito validation (required in production)
	if c.IsProduction() {
		if c.Cognito.UserPoolID == "" {
			return fmt.Errorf("cognito user pool ID is required in production")
		}
		if c.Cognito.ClientID == "" {
			return fmt.Errorf("cognito client ID is required in production")
		}
	}

	if c.Logs.PollAttempts < 1 {
		return fmt.Errorf("logs poll attempts must be at least 1")
	}
	if c.Logs.PollInterval <= 0 {
		return fmt.Errorf("logs poll interval must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsConfigured reports whether both pool and client identifiers are set
func (c *CognitoConfig) IsConfigured() bool {
	return c.UserPoolID != "" && c.ClientID != ""
}

// IssuerURL returns the expected token issuer for the user pool
func (c *CognitoConfig) IssuerURL() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL returns the well-known key set endpoint of the user pool
func (c *CognitoConfig) JWKSURL() string {
	return c.IssuerURL() + "/.well-known/jwks.json"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the Prometheus listener address
func (c *Config) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Observability.MetricsPort)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
