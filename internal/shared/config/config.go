package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server ServerConfig
	Data   DataConfig
	Azure  AzureConfig
	Limits LimitsConfig
	Job    JobConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DataConfig holds the on-disk state layout
type DataConfig struct {
	Root string
}

// AzureConfig carries credential overrides from the environment. When set,
// these take priority over the file-backed environment profile, matching
// containerized deployments where secrets arrive as env vars.
type AzureConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// LimitsConfig holds API rate limiting configuration
type LimitsConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// JobConfig holds delivery job tuning
type JobConfig struct {
	InterMessageDelay time.Duration
	SweepSchedule     string
}

// LoadConfig loads configuration from .env (if present) and the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	rps, _ := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "25"), 64)
	burst, _ := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "50"))
	delayMs, _ := strconv.Atoi(getEnv("JOB_DELAY_MS", "2000"))

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Data: DataConfig{
			Root: getEnv("DATA_ROOT", "./data"),
		},
		Azure: AzureConfig{
			TenantID:     getEnv("AZURE_TENANT_ID", ""),
			ClientID:     getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),
		},
		Limits: LimitsConfig{
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		Job: JobConfig{
			InterMessageDelay: time.Duration(delayMs) * time.Millisecond,
			SweepSchedule:     getEnv("SWEEP_SCHEDULE", "@hourly"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
