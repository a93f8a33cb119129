package config

// AppConfig is the process-level configuration loaded from environment
// variables using the github.com/caarlos0/env library. It covers the
// operational knobs only; the authentication engine itself is configured
// by the JSON document described in engine.go, whose path is given by
// EngineConfigFile.
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging).
	IsDev bool `env:"DEV" envDefault:"false"`

	// EngineConfigFile is the path to the JSON engine configuration.
	EngineConfigFile string `env:"AUTH_CONFIG_FILE" envDefault:"/etc/ldapauthd/config.json"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Audit trail configuration
	Audit AuditConfig `envPrefix:"AUDIT_"`

	// Metrics emission configuration
	Metrics MetricsConfig `envPrefix:"STATSD_"`
}

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8888"`
}

// AuditConfig controls the optional auth event trail.
type AuditConfig struct {
	// DatabaseURL is the Postgres connection string for the audit
	// trail. Empty disables auditing.
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`
}

// MetricsConfig controls optional StatsD metric emission.
type MetricsConfig struct {
	// Addr is the UDP host:port of a StatsD sink. Empty disables
	// metrics.
	Addr string `env:"ADDR" envDefault:""`

	// Prefix is prepended to every metric name.
	Prefix string `env:"PREFIX" envDefault:"ldapauthd"`
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8888"
	}
}
