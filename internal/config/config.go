// ABOUTME: Configuration loading and parsing for workspace-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, duration parsing and defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/workspace-gateway/internal/auth"
)

// Environment variables consulted while loading.
const (
	EnvConfigPath = "WORKSPACE_GATEWAY_CONFIG"
	EnvBaseURL    = "WORKSPACE_GATEWAY_URL"
)

// Defaults
const (
	DefaultHTTPAddr          = "0.0.0.0:8080"
	DefaultMaxBodyBytes      = 1 << 20
	DefaultRegisterRate      = 1.0
	DefaultRegisterBurst     = 10
	DefaultKeepaliveInterval = 3 * time.Second
	DefaultMaxDuration       = 8 * time.Second
	DefaultSubscriberBuffer  = 64
	DefaultMetricsPath       = "/metrics"
	DefaultServiceName       = "Google Workspace MCP Server"
)

// Config represents the complete workspace-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Streaming StreamingConfig `yaml:"streaming" toml:"streaming"`
	CORS      CORSConfig      `yaml:"cors" toml:"cors"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Manifest  ManifestConfig  `yaml:"manifest" toml:"manifest"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// BaseURL is the externally visible origin used in discovery documents
	// and authorization links. Derived from http_addr when empty.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve TLS using the tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// AuthConfig holds client registration and token settings
type AuthConfig struct {
	// JWTSecret signs tokens and codes. A random secret is generated per
	// process when empty, so tokens do not survive restarts.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`

	TokenTTL time.Duration `yaml:"-" toml:"-"`
	CodeTTL  time.Duration `yaml:"-" toml:"-"`

	ClientIDPrefix      string   `yaml:"client_id_prefix" toml:"client_id_prefix"`
	DefaultRedirectURIs []string `yaml:"default_redirect_uris" toml:"default_redirect_uris"`
	DefaultScope        string   `yaml:"default_scope" toml:"default_scope"`
	MaxClients          int      `yaml:"max_clients" toml:"max_clients"`

	// RegisterRate limits client registrations per second across all callers.
	RegisterRate  float64 `yaml:"register_rate" toml:"register_rate"`
	RegisterBurst int     `yaml:"register_burst" toml:"register_burst"`

	// Raw string values for unmarshaling
	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
	CodeTTLRaw  string `yaml:"code_ttl" toml:"code_ttl"`
}

// StreamingConfig holds streaming session timing
type StreamingConfig struct {
	KeepaliveInterval time.Duration `yaml:"-" toml:"-"`
	MaxDuration       time.Duration `yaml:"-" toml:"-"`
	SubscriberBuffer  int           `yaml:"subscriber_buffer" toml:"subscriber_buffer"`

	KeepaliveIntervalRaw string `yaml:"keepalive_interval" toml:"keepalive_interval"`
	MaxDurationRaw       string `yaml:"max_duration" toml:"max_duration"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// IsEnabled reports whether /metrics is served. Unset means enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ManifestConfig describes the service in the connector manifest
type ManifestConfig struct {
	Name             string   `yaml:"name" toml:"name"`
	Description      string   `yaml:"description" toml:"description"`
	Version          string   `yaml:"version" toml:"version"`
	IconURL          string   `yaml:"icon_url" toml:"icon_url"`
	DocumentationURL string   `yaml:"documentation_url" toml:"documentation_url"`
	Scopes           []string `yaml:"scopes" toml:"scopes"`
	Features         []string `yaml:"features" toml:"features"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(path, data)
}

// LoadOrDefault behaves like Load but falls back to Default when no file
// exists at path.
func LoadOrDefault(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// ResolvePath returns the path to the gateway config file.
// Priority: WORKSPACE_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/workspace-gateway/gateway.yaml > ~/.config/workspace-gateway/gateway.yaml
func ResolvePath() string {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "workspace-gateway", "gateway.yaml")
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnvOverrides(cfg *Config) {
	if u := os.Getenv(EnvBaseURL); u != "" {
		cfg.Server.BaseURL = u
	}
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = c.derivedBaseURL()
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = auth.DefaultTokenTTL
	}
	if c.Auth.CodeTTL == 0 {
		c.Auth.CodeTTL = auth.DefaultCodeTTL
	}
	if c.Auth.ClientIDPrefix == "" {
		c.Auth.ClientIDPrefix = auth.DefaultClientIDPrefix
	}
	if len(c.Auth.DefaultRedirectURIs) == 0 {
		c.Auth.DefaultRedirectURIs = append([]string(nil), auth.DefaultRedirectURIs...)
	}
	if c.Auth.DefaultScope == "" {
		c.Auth.DefaultScope = auth.DefaultScope
	}
	if c.Auth.MaxClients <= 0 {
		c.Auth.MaxClients = auth.DefaultMaxClients
	}
	if c.Auth.RegisterRate <= 0 {
		c.Auth.RegisterRate = DefaultRegisterRate
	}
	if c.Auth.RegisterBurst <= 0 {
		c.Auth.RegisterBurst = DefaultRegisterBurst
	}

	if c.Streaming.KeepaliveInterval == 0 {
		c.Streaming.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.Streaming.MaxDuration == 0 {
		c.Streaming.MaxDuration = DefaultMaxDuration
	}
	if c.Streaming.SubscriberBuffer <= 0 {
		c.Streaming.SubscriberBuffer = DefaultSubscriberBuffer
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Manifest.Name == "" {
		c.Manifest.Name = DefaultServiceName
	}
	if c.Manifest.Description == "" {
		c.Manifest.Description = "Access Gmail, Calendar, Drive, Docs, Sheets and Tasks through MCP"
	}
	if c.Manifest.Version == "" {
		c.Manifest.Version = "1.0.0"
	}
	if len(c.Manifest.Scopes) == 0 {
		c.Manifest.Scopes = strings.Fields(c.Auth.DefaultScope)
	}
	if len(c.Manifest.Features) == 0 {
		c.Manifest.Features = []string{"email", "calendar", "drive", "docs", "sheets", "tasks"}
	}
}

// derivedBaseURL guesses the public origin from the listener settings.
func (c *Config) derivedBaseURL() string {
	if c.Tailscale.Enabled && c.Tailscale.Hostname != "" {
		if c.Tailscale.HTTPS || c.Tailscale.Funnel {
			return "https://" + c.Tailscale.Hostname
		}
		return "http://" + c.Tailscale.Hostname
	}
	if c.Server.HTTPAddr == "" {
		return ""
	}
	return "http://" + c.Server.HTTPAddr
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Auth.CodeTTL <= 0 {
		return fmt.Errorf("auth.code_ttl must be positive")
	}
	if c.Auth.ClientIDPrefix == "" {
		return fmt.Errorf("auth.client_id_prefix must not be empty")
	}
	if c.Auth.RegisterRate <= 0 || c.Auth.RegisterBurst <= 0 {
		return fmt.Errorf("auth.register_rate and auth.register_burst must be positive")
	}

	if c.Streaming.KeepaliveInterval <= 0 {
		return fmt.Errorf("streaming.keepalive_interval must be positive")
	}
	if c.Streaming.MaxDuration <= c.Streaming.KeepaliveInterval {
		return fmt.Errorf("streaming.max_duration (%s) must exceed streaming.keepalive_interval (%s)",
			c.Streaming.MaxDuration, c.Streaming.KeepaliveInterval)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"auth.code_ttl", cfg.Auth.CodeTTLRaw, &cfg.Auth.CodeTTL},
		{"streaming.keepalive_interval", cfg.Streaming.KeepaliveIntervalRaw, &cfg.Streaming.KeepaliveInterval},
		{"streaming.max_duration", cfg.Streaming.MaxDurationRaw, &cfg.Streaming.MaxDuration},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// DefaultYAML renders the starter config written by `workspace-gateway init`.
func DefaultYAML(jwtSecret string) string {
	return fmt.Sprintf(`# workspace-gateway configuration
# Generated by workspace-gateway init

server:
  http_addr: "%s"
  # base_url: "https://workspace.example.com"
  max_body_bytes: %d

tailscale:
  enabled: false
  hostname: "workspace-gateway"
  ephemeral: false
  https: false
  funnel: false

auth:
  jwt_secret: "%s"
  token_ttl: "%s"
  code_ttl: "%s"
  client_id_prefix: "%s"
  default_scope: "%s"
  max_clients: %d
  register_rate: %g
  register_burst: %d

streaming:
  keepalive_interval: "%s"
  max_duration: "%s"
  subscriber_buffer: %d

cors:
  allowed_origins: ["*"]

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "%s"
`,
		DefaultHTTPAddr, DefaultMaxBodyBytes,
		jwtSecret, auth.DefaultTokenTTL, auth.DefaultCodeTTL, auth.DefaultClientIDPrefix, auth.DefaultScope, auth.DefaultMaxClients,
		DefaultRegisterRate, DefaultRegisterBurst,
		DefaultKeepaliveInterval, DefaultMaxDuration, DefaultSubscriberBuffer,
		DefaultMetricsPath,
	)
}
