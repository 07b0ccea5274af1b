package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration fields for the relay.
type Config struct {
	Port        string
	DatabaseURL string

	WebhookPath string

	// DefaultEmpresaID is the fallback tenant used when an inbound instance
	// has no active evolution_api_config row.
	DefaultEmpresaID string

	// SingleOpenConversation makes the resolver refuse to open a second
	// conversation for the same (contact, channel). When false the most
	// recently updated open conversation is reused.
	SingleOpenConversation bool

	QueueTick        time.Duration
	QueueMaxRetries  int
	QueueRetention   time.Duration
	ReaperSchedule   string
	DispatchTimeout  time.Duration

	RabbitURL   string
	RabbitQueue string
}

// LoadConfig loads configuration from environment variables, with a .env file
// as an optional source.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:             os.Getenv("PORT"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		WebhookPath:      os.Getenv("WEBHOOK_PATH"),
		DefaultEmpresaID: os.Getenv("DEFAULT_EMPRESA_ID"),
		ReaperSchedule:   os.Getenv("QUEUE_REAPER_SCHEDULE"),
		RabbitURL:        os.Getenv("RABBITMQ_URL"),
		RabbitQueue:      os.Getenv("RABBITMQ_QUEUE"),
	}

	cfg.SingleOpenConversation = envBool("SINGLE_OPEN_CONVERSATION", false)
	cfg.QueueTick = envDuration("QUEUE_TICK", 2*time.Second)
	cfg.QueueMaxRetries = envInt("QUEUE_MAX_RETRIES", 3)
	cfg.QueueRetention = envDuration("QUEUE_RETENTION", 72*time.Hour)
	cfg.DispatchTimeout = envDuration("DISPATCH_TIMEOUT", 15*time.Second)

	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "atende-relay.db"
	}
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook/evolution"
	}
	if cfg.ReaperSchedule == "" {
		cfg.ReaperSchedule = "@every 1h"
	}
	if cfg.RabbitQueue == "" {
		cfg.RabbitQueue = "atende_events"
	}

	return cfg, nil
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid boolean in environment, using default")
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
		return def
	}
	return d
}
