// Package config provides the process-level configuration and the
// per-operation configuration registry for the enhancement pipeline.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds process-level configuration for the container-assist server.
type Config struct {
	Port      int
	Version   string
	Telemetry TelemetryConfig
	Resources ResourceBackendConfig
	Sessions  SessionBackendConfig
	Notify    NotifyConfig
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// ResourceBackendConfig selects the resource store backend.
type ResourceBackendConfig struct {
	// Backend is "memory" or "redis".
	Backend  string
	RedisURL string
	// Scheme is the URI scheme for published resources.
	Scheme string
	// SweepIntervalSeconds is how often expired entries are purged.
	SweepIntervalSeconds int
}

// SessionBackendConfig selects the workflow session store backend.
type SessionBackendConfig struct {
	// Backend is "memory" or "postgres".
	Backend     string
	PostgresURL string
}

// NotifyConfig configures the progress-notification webhook channel.
type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is loaded first, if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:    envInt("CASSIST_PORT", 8080),
		Version: envStr("CASSIST_VERSION", "0.4.0"),
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "container-assist"),
		},
		Resources: ResourceBackendConfig{
			Backend:              envStr("CASSIST_RESOURCE_BACKEND", "memory"),
			RedisURL:             envStr("CASSIST_REDIS_URL", "redis://localhost:6379/0"),
			Scheme:               envStr("CASSIST_RESOURCE_SCHEME", "cassist"),
			SweepIntervalSeconds: envInt("CASSIST_RESOURCE_SWEEP_INTERVAL_S", 600),
		},
		Sessions: SessionBackendConfig{
			Backend:     envStr("CASSIST_SESSION_BACKEND", "memory"),
			PostgresURL: envStr("CASSIST_POSTGRES_URL", ""),
		},
		Notify: NotifyConfig{
			WebhookURL:    envStr("CASSIST_PROGRESS_WEBHOOK_URL", ""),
			WebhookSecret: envStr("CASSIST_PROGRESS_WEBHOOK_SECRET", ""),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
