package config

import "time"

// OutboxConfig configures the event-store delivery worker.
type OutboxConfig struct {
	BatchSize       int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	MaxBackoff      time.Duration
	MaxAttempts     int
}

func loadOutboxConfig() OutboxConfig {
	return OutboxConfig{
		BatchSize:       getEnvInt("OUTBOX_BATCH_SIZE", 50),
		PollInterval:    getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
		ShutdownTimeout: getEnvDuration("OUTBOX_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBackoff:      getEnvDuration("OUTBOX_MAX_BACKOFF", time.Hour),
		MaxAttempts:     getEnvInt("OUTBOX_MAX_ATTEMPTS", 12),
	}
}
