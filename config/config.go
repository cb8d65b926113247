package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for audit logs. When nil, audit uses main DB.
	Auth          AuthConfig
	Quota         QuotaConfig
	Audit         AuditConfig
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
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds credential verification configuration
type AuthConfig struct {
	// RotationGrace is how long a rotated credential remains valid after
	// its replacement is issued.
	RotationGrace time.Duration
	// LookupTimeout bounds the credential/policy store lookup. On expiry the
	// request fails closed with a retryable error, never an allow.
	LookupTimeout time.Duration
}

// QuotaConfig holds token-bucket rate limiting configuration
type QuotaConfig struct {
	// Backend selects where bucket state lives: "memory" (per instance)
	// or "postgres" (shared across instances).
	Backend string
	// Capacity is the default bucket size (requests per window).
	Capacity int
	// Window is the refill window: the bucket refills continuously at
	// Capacity/Window tokens per second.
	Window time.Duration
	// TierCapacity overrides Capacity per credential tier.
	TierCapacity map[string]int
	// CleanupInterval controls how often idle buckets are reclaimed.
	CleanupInterval time.Duration
	// IdleTTL is how long an untouched bucket survives before cleanup.
	IdleTTL time.Duration
}

// AuditConfig holds async audit emitter configuration
type AuditConfig struct {
	BufferSize      int           // Bounded queue capacity
	BatchSize       int           // Entries per batch write
	FlushInterval   time.Duration // Flush even when the batch is not full
	RetainLimit     int           // Max entries retained across failed writes
	ShutdownTimeout time.Duration // Grace period to drain on shutdown
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		Auth: AuthConfig{
			RotationGrace: getEnvAsDuration("AUTH_ROTATION_GRACE", 7*24*time.Hour),
			LookupTimeout: getEnvAsDuration("AUTH_LOOKUP_TIMEOUT", 2*time.Second),
		},
		Quota: QuotaConfig{
			Backend:         getEnv("QUOTA_BACKEND", "memory"),
			Capacity:        getEnvAsInt("QUOTA_CAPACITY", 100),
			Window:          getEnvAsDuration("QUOTA_WINDOW", 60*time.Second),
			TierCapacity:    loadTierCapacity(),
			CleanupInterval: getEnvAsDuration("QUOTA_CLEANUP_INTERVAL", 10*time.Minute),
			IdleTTL:         getEnvAsDuration("QUOTA_IDLE_TTL", time.Hour),
		},
		Audit: AuditConfig{
			BufferSize:      getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			BatchSize:       getEnvAsInt("AUDIT_BATCH_SIZE", 50),
			FlushInterval:   getEnvAsDuration("AUDIT_FLUSH_INTERVAL", 5*time.Second),
			RetainLimit:     getEnvAsInt("AUDIT_RETAIN_LIMIT", 5000),
			ShutdownTimeout: getEnvAsDuration("AUDIT_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Quota.Backend != "memory" && c.Quota.Backend != "postgres" {
		return fmt.Errorf("quota backend must be memory or postgres, got %q", c.Quota.Backend)
	}
	if c.Quota.Capacity <= 0 {
		return fmt.Errorf("quota capacity must be positive")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota window must be positive")
	}

	if c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit buffer size must be positive")
	}
	if c.Audit.BatchSize <= 0 {
		return fmt.Errorf("audit batch size must be positive")
	}
	if c.Audit.BatchSize > c.Audit.BufferSize {
		return fmt.Errorf("audit batch size must not exceed buffer size")
	}

	if c.Auth.RotationGrace < 0 {
		return fmt.Errorf("rotation grace must not be negative")
	}
	if c.Auth.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive")
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

// CapacityForTier returns the bucket capacity for a credential tier,
// falling back to the default capacity for unknown tiers.
func (c *QuotaConfig) CapacityForTier(tier string) int {
	if capacity, ok := c.TierCapacity[tier]; ok && capacity > 0 {
		return capacity
	}
	return c.Capacity
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", "governance_password"),
		Database:        getEnv("DB_NAME", "governance"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadTierCapacity parses QUOTA_TIER_CAPACITY ("free=50,standard=100,enterprise=500")
func loadTierCapacity() map[string]int {
	raw := getEnv("QUOTA_TIER_CAPACITY", "")
	if raw == "" {
		return nil
	}
	tiers := make(map[string]int)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		capacity, err := strconv.Atoi(parts[1])
		if err != nil || capacity <= 0 {
			continue
		}
		tiers[parts[0]] = capacity
	}
	if len(tiers) == 0 {
		return nil
	}
	return tiers
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
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
	return 8080
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
