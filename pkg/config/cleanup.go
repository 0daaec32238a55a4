package config

import "time"

// CleanupConfig configures the background sweep that purges expired
// sessions, OAuth codes/devices, one-time codes, and refresh tokens.
type CleanupConfig struct {
	Interval time.Duration
}

func loadCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval: getEnvDuration("CLEANUP_SWEEP_INTERVAL", 10*time.Minute),
	}
}
