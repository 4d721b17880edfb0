package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"` // "prod" (default) or "dev"
	Server      ServerConfig    `toml:"server"`
	HostApp     HostAppConfig   `toml:"hostapp"`
	Discovery   DiscoveryConfig `toml:"discovery"`
	Broker      BrokerConfig    `toml:"broker"`
	Scoring     ScoringConfig   `toml:"scoring"`
	Auth        AuthConfig      `toml:"auth"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// HostAppConfig describes the host application the broker executes against.
type HostAppConfig struct {
	URL            string `toml:"url"`             // base URL of the host application
	PublicPrefix   string `toml:"public_prefix"`   // only paths under this prefix are executable
	TimeoutSeconds int    `toml:"timeout_seconds"` // upstream request timeout
}

// DiscoveryConfig controls endpoint discovery.
type DiscoveryConfig struct {
	Source           string `toml:"source"`            // "files" (default) or "manifest"
	RoutesRoot       string `toml:"routes_root"`       // root of the host app's route definition tree
	BasePath         string `toml:"base_path"`         // URL prefix the route tree is mounted under
	ManifestFile     string `toml:"manifest_file"`     // endpoint manifest, used when source = "manifest"
	CapabilitiesFile string `toml:"capabilities_file"` // optional per-route body/query field declarations
	TTLSeconds       int    `toml:"ttl_seconds"`       // discovery cache freshness window
	Watch            bool   `toml:"watch"`             // invalidate cache on route file changes
}

// BrokerConfig contains execution policy settings.
// AutoApproveWrites and AutoApproveDelete are pointers so an unset value can
// fall back to the posture default (dev: writes auto-approved; prod: neither).
// The BROKER_AUTO_APPROVE_* environment variables override both at call time.
type BrokerConfig struct {
	ControlPlanePrefix string `toml:"control_plane_prefix"` // broker's own namespace, never an execution target
	AutoApproveWrites  *bool  `toml:"auto_approve_writes"`
	AutoApproveDelete  *bool  `toml:"auto_approve_delete"`
}

// ScoringConfig tunes the relevance scorer. Entities and intents are
// domain-specific vocabulary; when empty, built-in defaults apply.
type ScoringConfig struct {
	DefaultLimit int            `toml:"default_limit"`
	Entities     []EntityConfig `toml:"entities"`
	Intents      []IntentConfig `toml:"intents"`
}

// EntityConfig maps a business-object keyword to its API path segment.
type EntityConfig struct {
	Name    string `toml:"name"`    // singular keyword, e.g. "company"
	Plural  string `toml:"plural"`  // plural keyword, e.g. "companies"
	Segment string `toml:"segment"` // path segment, e.g. "companies"
}

// IntentConfig maps intent keywords to the HTTP verbs they conventionally use.
type IntentConfig struct {
	Name     string   `toml:"name"`     // "create", "update", "delete", "list"
	Verbs    []string `toml:"verbs"`    // aligned HTTP verbs
	Keywords []string `toml:"keywords"` // query tokens that signal the intent
}

// AuthConfig contains identity extraction settings.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret"`
	CookieName string `toml:"cookie_name"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// IsDevMode reports whether the broker runs in the development posture.
func (c *Config) IsDevMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "dev")
}

// BaseURL returns the broker's own base URL.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks mandatory configuration and returns human-readable issues.
func (c *Config) Validate() []string {
	var issues []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.HostApp.URL == "" {
		issues = append(issues, "hostapp.url is required (base URL of the host application)")
	}
	if !strings.HasPrefix(c.HostApp.PublicPrefix, "/") {
		issues = append(issues, fmt.Sprintf("hostapp.public_prefix must start with '/', got %q", c.HostApp.PublicPrefix))
	}
	if !strings.HasPrefix(c.Broker.ControlPlanePrefix, "/") {
		issues = append(issues, fmt.Sprintf("broker.control_plane_prefix must start with '/', got %q", c.Broker.ControlPlanePrefix))
	}

	switch c.Discovery.Source {
	case "", "files":
		if c.Discovery.RoutesRoot == "" {
			issues = append(issues, "discovery.routes_root is required when discovery.source is \"files\"")
		}
	case "manifest":
		if c.Discovery.ManifestFile == "" {
			issues = append(issues, "discovery.manifest_file is required when discovery.source is \"manifest\"")
		}
	default:
		issues = append(issues, fmt.Sprintf("discovery.source must be \"files\" or \"manifest\", got %q", c.Discovery.Source))
	}

	if !c.IsDevMode() && c.Auth.JWTSecret == "" {
		issues = append(issues, "auth.jwt_secret is required outside dev mode")
	}

	return issues
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies BROKER_* environment variable overrides to config.
// The auto-approve policy switches are deliberately absent here: the broker
// reads those from the environment on every call, never at load time.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("BROKER_ENVIRONMENT"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("BROKER_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BROKER_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if url := os.Getenv("BROKER_HOSTAPP_URL"); url != "" {
		config.HostApp.URL = url
	}
	if root := os.Getenv("BROKER_ROUTES_ROOT"); root != "" {
		config.Discovery.RoutesRoot = root
	}
	if caps := os.Getenv("BROKER_CAPABILITIES_FILE"); caps != "" {
		config.Discovery.CapabilitiesFile = caps
	}
	if secret := os.Getenv("BROKER_JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if level := os.Getenv("BROKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
