package config

// IdPConfig configures the external identity provider whose JWTs are
// accepted as one of the credential-resolution methods.
type IdPConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string
}

func loadIdPConfig() IdPConfig {
	return IdPConfig{
		JWKSURL:  getEnv("IDP_JWKS_URL", ""),
		Issuer:   getEnv("IDP_ISSUER", ""),
		Audience: getEnv("IDP_AUDIENCE", ""),
	}
}
