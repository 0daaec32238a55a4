package config

import "time"

// OnetimeConfig configures cross-origin login hand-off codes: short-lived,
// single-use, with their bound refresh token encrypted at rest.
type OnetimeConfig struct {
	TTL       time.Duration
	EncKeyB64 string
}

func loadOnetimeConfig() OnetimeConfig {
	return OnetimeConfig{
		TTL:       getEnvDuration("ONETIME_CODE_TTL", 120*time.Second),
		EncKeyB64: getEnv("ONETIME_CODE_ENC_KEY", ""),
	}
}
