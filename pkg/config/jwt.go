package config

import "time"

// JWTConfig configures access/refresh token signing.
type JWTConfig struct {
	SecretKey       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func loadJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		Issuer:          getEnv("JWT_ISSUER", "lanonasis-auth-gateway"),
		AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
	}
}
