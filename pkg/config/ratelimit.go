package config

// RateLimitConfig configures the per-route-class Redis token buckets.
type RateLimitConfig struct {
	LoginPerMinute        int
	TokenPerMinute        int
	IntrospectPerMinute   int
	GenericPerMinute      int
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		LoginPerMinute:      getEnvInt("RATELIMIT_LOGIN_PER_MIN", 10),
		TokenPerMinute:      getEnvInt("RATELIMIT_TOKEN_PER_MIN", 60),
		IntrospectPerMinute: getEnvInt("RATELIMIT_INTROSPECT_PER_MIN", 600),
		GenericPerMinute:    getEnvInt("RATELIMIT_GENERIC_PER_MIN", 500),
	}
}
