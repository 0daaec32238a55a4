package config

// AdminConfig configures the always-available emergency admin bypass accounts.
// Entries are seeded at bootstrap from ADMIN_BOOTSTRAP_EMAILS /
// ADMIN_BOOTSTRAP_PASSWORD_HASHES, parallel comma-separated lists.
type AdminConfig struct {
	BootstrapEmails         []string
	BootstrapPasswordHashes []string
}

func loadAdminConfig() AdminConfig {
	return AdminConfig{
		BootstrapEmails:         getEnvStringSlice("ADMIN_BOOTSTRAP_EMAILS", nil),
		BootstrapPasswordHashes: getEnvStringSlice("ADMIN_BOOTSTRAP_PASSWORD_HASHES", nil),
	}
}
