package config

// NewDefaultConfig creates a configuration with default values.
// The posture is production: no auto-approval of any mutating call.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 4361,
			Host: "localhost",
		},
		HostApp: HostAppConfig{
			URL:            "http://localhost:3000",
			PublicPrefix:   "/api/",
			TimeoutSeconds: 300,
		},
		Discovery: DiscoveryConfig{
			Source:     "files",
			RoutesRoot: "",
			BasePath:   "/api",
			TTLSeconds: 30,
			Watch:      false,
		},
		Broker: BrokerConfig{
			ControlPlanePrefix: "/api/assistant",
		},
		Scoring: ScoringConfig{
			DefaultLimit: 10,
		},
		Auth: AuthConfig{
			CookieName: "app_session",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
