// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// CronConfig provides the shared secret used by scheduler-originated calls.
type CronConfig interface {
	GetCronSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq-backed scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAssignmentCron() string
}

// CampaignConfig provides settings for the external campaign system.
type CampaignConfig interface {
	GetCampaignAPIURL() string
	GetCampaignAPIKey() string
	GetCampaignDefaultID() string
	GetCampaignAPITimeout() time.Duration
	IsCampaignEnabled() bool
}

// AssignmentConfig provides runtime limits for the assignment pipeline.
type AssignmentConfig interface {
	CronConfig
	GetAssignmentMode() string
	GetWorkerBaseURL() string
	GetDispatchTimeout() time.Duration
	GetWorkerTimeBudget() time.Duration
	GetChunkSize() int
	GetMaxIterations() int
	GetLogRetention() time.Duration
	GetBlocklistCacheTTL() time.Duration
}

// Assignment modes.
const (
	AssignmentModeFanout = "fanout"
	AssignmentModeSingle = "single"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	CronSecret       string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	AssignmentCron   string

	AssignmentMode    string
	WorkerBaseURL     string
	DispatchTimeout   time.Duration
	WorkerTimeBudget  time.Duration
	ChunkSize         int
	MaxIterations     int
	LogRetention      time.Duration
	BlocklistCacheTTL time.Duration

	CampaignAPIURL     string
	CampaignAPIKey     string
	CampaignDefaultID  string
	CampaignAPITimeout time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// CronConfig implementation
func (c *Config) GetCronSecret() string { return c.CronSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetAssignmentCron() string { return c.AssignmentCron }

// CampaignConfig implementation
func (c *Config) GetCampaignAPIURL() string            { return c.CampaignAPIURL }
func (c *Config) GetCampaignAPIKey() string            { return c.CampaignAPIKey }
func (c *Config) GetCampaignDefaultID() string         { return c.CampaignDefaultID }
func (c *Config) GetCampaignAPITimeout() time.Duration { return c.CampaignAPITimeout }
func (c *Config) IsCampaignEnabled() bool {
	return c.CampaignAPIURL != "" && c.CampaignAPIKey != ""
}

// AssignmentConfig implementation
func (c *Config) GetAssignmentMode() string           { return c.AssignmentMode }
func (c *Config) GetWorkerBaseURL() string            { return c.WorkerBaseURL }
func (c *Config) GetDispatchTimeout() time.Duration   { return c.DispatchTimeout }
func (c *Config) GetWorkerTimeBudget() time.Duration  { return c.WorkerTimeBudget }
func (c *Config) GetChunkSize() int                   { return c.ChunkSize }
func (c *Config) GetMaxIterations() int               { return c.MaxIterations }
func (c *Config) GetLogRetention() time.Duration      { return c.LogRetention }
func (c *Config) GetBlocklistCacheTTL() time.Duration { return c.BlocklistCacheTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		CronSecret:       getEnv("CRON_SECRET", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AssignmentCron:   getEnv("ASSIGNMENT_CRON", "0 7 * * 1-5"),

		AssignmentMode:    strings.ToLower(getEnv("ASSIGNMENT_MODE", AssignmentModeFanout)),
		WorkerBaseURL:     strings.TrimRight(getEnv("ASSIGNMENT_WORKER_BASE_URL", "http://localhost:8080"), "/"),
		DispatchTimeout:   mustDuration(getEnv("ASSIGNMENT_DISPATCH_TIMEOUT", "10s")),
		WorkerTimeBudget:  mustDuration(getEnv("ASSIGNMENT_WORKER_TIME_BUDGET", "50s")),
		ChunkSize:         mustInt(getEnv("ASSIGNMENT_CHUNK_SIZE", "25")),
		MaxIterations:     mustInt(getEnv("ASSIGNMENT_MAX_ITERATIONS", "200")),
		LogRetention:      time.Duration(mustInt(getEnv("ASSIGNMENT_LOG_RETENTION_DAYS", "180"))) * 24 * time.Hour,
		BlocklistCacheTTL: mustDuration(getEnv("BLOCKLIST_CACHE_TTL", "5m")),

		CampaignAPIURL:     strings.TrimRight(getEnv("CAMPAIGN_API_URL", ""), "/"),
		CampaignAPIKey:     getEnv("CAMPAIGN_API_KEY", ""),
		CampaignDefaultID:  getEnv("CAMPAIGN_DEFAULT_ID", ""),
		CampaignAPITimeout: mustDuration(getEnv("CAMPAIGN_API_TIMEOUT", "15s")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.AssignmentMode != AssignmentModeFanout && c.AssignmentMode != AssignmentModeSingle {
		return fmt.Errorf("ASSIGNMENT_MODE must be %q or %q", AssignmentModeFanout, AssignmentModeSingle)
	}
	if c.ChunkSize < 1 || c.ChunkSize > 100 {
		return fmt.Errorf("ASSIGNMENT_CHUNK_SIZE must be between 1 and 100")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("ASSIGNMENT_MAX_ITERATIONS must be positive")
	}
	if c.DispatchTimeout <= 0 || c.WorkerTimeBudget <= 0 {
		return fmt.Errorf("ASSIGNMENT_DISPATCH_TIMEOUT and ASSIGNMENT_WORKER_TIME_BUDGET must be positive durations")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
