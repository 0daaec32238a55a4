package config

// APIKeyConfig configures API key issuance.
type APIKeyConfig struct {
	LivePrefix string
	TestPrefix string
}

func loadAPIKeyConfig() APIKeyConfig {
	return APIKeyConfig{
		LivePrefix: getEnv("APIKEY_LIVE_PREFIX", "lano_live"),
		TestPrefix: getEnv("APIKEY_TEST_PREFIX", "lano_test"),
	}
}
