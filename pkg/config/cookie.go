package config

import "time"

// CookieConfig configures the SSO session cookie set on the web platform.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite string
	TTL      time.Duration
}

func loadCookieConfig() CookieConfig {
	return CookieConfig{
		Name:     getEnv("COOKIE_NAME", "lano_sso"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
		Secure:   getEnvBool("COOKIE_SECURE", true),
		SameSite: getEnv("COOKIE_SAMESITE", "Lax"),
		TTL:      getEnvDuration("COOKIE_TTL", 7*24*time.Hour),
	}
}
