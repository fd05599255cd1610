package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	JWTSigningKey string

	// Upstream LLM completion API.
	UpstreamBaseURL string
	UpstreamAPIKey  string
	UpstreamModel   string
	UpstreamTimeout time.Duration

	// Usage event retention for the cleanup worker.
	UsageRetention  time.Duration
	CleanupInterval time.Duration

	// Kafka audit pipeline; empty brokers disables publishing.
	KafkaBrokers string
	AuditTopic   string
}

// Defaults kept in one place so tests and FromEnv agree.
const (
	DefaultAddr            = ":8080"
	DefaultUpstreamModel   = "gpt-4o-mini"
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultUsageRetention  = 24 * time.Hour
	DefaultCleanupInterval = 15 * time.Minute
	DefaultAuditTopic      = "cortex.audit.events"
)

// FromEnv builds a Server config from environment variables. A .env file in the
// working directory is loaded first if present; real environment wins.
func FromEnv() Server {
	_ = godotenv.Load()

	cfg := Server{
		Addr:            envOr("CORTEX_ADDR", DefaultAddr),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		UpstreamBaseURL: os.Getenv("OPENAI_BASE_URL"),
		UpstreamAPIKey:  os.Getenv("OPENAI_API_KEY"),
		UpstreamModel:   envOr("OPENAI_MODEL", DefaultUpstreamModel),
		UpstreamTimeout: durationOr("UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),
		UsageRetention:  durationOr("USAGE_RETENTION", DefaultUsageRetention),
		CleanupInterval: durationOr("CLEANUP_INTERVAL", DefaultCleanupInterval),
		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		AuditTopic:      envOr("AUDIT_TOPIC", DefaultAuditTopic),
	}

	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
