package config

import (
	"fmt"
	"os"
	"strconv"
)

// DispatchConfig is passed explicitly into the dispatch layer at call time.
// There is deliberately no package-level default: every orchestrator run sees
// exactly the pacing envelope its caller handed it.
type DispatchConfig struct {
	DefaultMinDelay  int // seconds, used when a campaign has no delay envelope
	DefaultMaxDelay  int
	GlobalRatePerSec int // process-wide outbound cap across all runs, 0 disables
}

// Config collects every environment-driven setting the binaries need.
type Config struct {
	DatabaseURL string
	QueueURL    string // AMQP URL; empty selects the in-memory queue
	QueueName   string
	HTTPAddr    string
	LogLevel    string

	GatewayURL   string // WhatsApp gateway base URL; empty selects the mock sender
	GatewayToken string

	SchedulerPollEvery string // cron spec, e.g. "@every 30s"

	Dispatch DispatchConfig
}

// Load reads configuration from the environment. Callers run godotenv.Load
// first so a local .env file can populate the variables.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		QueueURL:           os.Getenv("QUEUE_URL"),
		QueueName:          envOr("QUEUE_NAME", "campaign_dispatch"),
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		LogLevel:           envOr("LOG_LEVEL", "info"),
		GatewayURL:         os.Getenv("GATEWAY_URL"),
		GatewayToken:       os.Getenv("GATEWAY_TOKEN"),
		SchedulerPollEvery: envOr("SCHEDULER_POLL_EVERY", "@every 30s"),
		Dispatch: DispatchConfig{
			DefaultMinDelay:  envIntOr("DISPATCH_MIN_DELAY", 3),
			DefaultMaxDelay:  envIntOr("DISPATCH_MAX_DELAY", 8),
			GlobalRatePerSec: envIntOr("DISPATCH_GLOBAL_RATE", 0),
		},
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Dispatch.DefaultMinDelay <= 0 || cfg.Dispatch.DefaultMaxDelay < cfg.Dispatch.DefaultMinDelay {
		return cfg, fmt.Errorf("invalid dispatch delay envelope: min=%d max=%d",
			cfg.Dispatch.DefaultMinDelay, cfg.Dispatch.DefaultMaxDelay)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
