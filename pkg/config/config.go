// Package config assembles runtime configuration from environment variables,
// one fragment file per concern, the way each infrastructure dependency gets
// its own small loader instead of one sprawling struct.
package config

// Config aggregates every configuration fragment the gateway needs.
type Config struct {
	Env       string
	Port      int
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Outbox    OutboxConfig
	Admin     AdminConfig
	IdP       IdPConfig
	APIKey    APIKeyConfig
	OAuth     OAuthConfig
	Onetime   OnetimeConfig
	Cleanup   CleanupConfig
}

// Load reads Config from the process environment.
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnvInt("PORT", 8080),
		Database:  loadDatabaseConfig(),
		Redis:     loadRedisConfig(),
		JWT:       loadJWTConfig(),
		Cookie:    loadCookieConfig(),
		CORS:      loadCORSConfig(),
		RateLimit: loadRateLimitConfig(),
		Outbox:    loadOutboxConfig(),
		Admin:     loadAdminConfig(),
		IdP:       loadIdPConfig(),
		APIKey:    loadAPIKeyConfig(),
		OAuth:     loadOAuthConfig(),
		Onetime:   loadOnetimeConfig(),
		Cleanup:   loadCleanupConfig(),
	}
}

// IsProduction reports whether the gateway is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
