package config

// CORSConfig configures allowed cross-origin callers, including the
// one-time authorization code cross-origin handoff endpoints.
type CORSConfig struct {
	AllowedOrigins []string
}

func loadCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}
