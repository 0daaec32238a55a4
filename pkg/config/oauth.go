package config

import "time"

// OAuthConfig configures the Authorization Code + PKCE and Device Code grants.
// The one-time cross-origin handoff code's TTL/key live in OnetimeConfig.
type OAuthConfig struct {
	AuthCodeTTL        time.Duration
	DeviceCodeTTL      time.Duration
	DevicePollInterval time.Duration
}

func loadOAuthConfig() OAuthConfig {
	return OAuthConfig{
		AuthCodeTTL:        getEnvDuration("OAUTH_AUTH_CODE_TTL", 60*time.Second),
		DeviceCodeTTL:      getEnvDuration("OAUTH_DEVICE_CODE_TTL", 10*time.Minute),
		DevicePollInterval: getEnvDuration("OAUTH_DEVICE_POLL_INTERVAL", 5*time.Second),
	}
}
