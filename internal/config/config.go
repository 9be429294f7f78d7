// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/g4m3ify/config.toml",
	"configs/config.toml",
}

// reservedRoutes are served by the proxy itself and cannot host metrics.
var reservedRoutes = []string{"/proxy", "/api", "/healthz"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config       string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host         string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port         int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel     string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Catalog      string `kong:"help='Path to catalog YAML (overrides config).',env='CATALOG_PATH'"`
	ProxyBaseURL string `kong:"name='proxy-url',help='Public base URL of this proxy, used for frame sources (overrides config).',env='PROXY_URL'"`
	Identity     string `kong:"help='Identity provider: memory|firebase|none (overrides config).',env='IDENTITY_PROVIDER'"`
	APIKey       string `kong:"help='Identity provider API key (overrides config).',env='IDENTITY_API_KEY'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Proxy    ProxyConfig    `toml:"proxy"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Identity IdentityConfig `toml:"identity"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8080); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// ProxyConfig holds settings for outbound fetches made by /proxy.
type ProxyConfig struct {
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	MaxRedirects    int      `toml:"max_redirects"`
	IdleConnections int      `toml:"idle_connections"`
	UserAgent       string   `toml:"user_agent"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	// AllowPrivateNetworks disables the dial-time guard against loopback,
	// RFC1918 and other non-public targets.
	AllowPrivateNetworks bool `toml:"allow_private_networks"`
}

// CatalogConfig points at the game catalog and the base used to build frame sources.
type CatalogConfig struct {
	Path         string `toml:"path"` // empty means the built-in catalog
	ProxyBaseURL string `toml:"proxy_base_url"`
}

// IdentityConfig selects and configures the identity provider.
type IdentityConfig struct {
	Provider          string `toml:"provider"` // memory | firebase | none
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	SessionSecret     string `toml:"session_secret"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/g4m3ify/config.toml then configs/config.toml. If none exists, the
// built-in defaults are used.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.Catalog != "" {
		c.Catalog.Path = cli.Catalog
	}
	if cli.ProxyBaseURL != "" {
		c.Catalog.ProxyBaseURL = cli.ProxyBaseURL
	}
	if cli.Identity != "" {
		c.Identity.Provider = cli.Identity
	}
	if cli.APIKey != "" {
		c.Identity.APIKey = cli.APIKey
	}
}

func (c *Config) validate() error {
	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.Proxy.TimeoutSeconds < 0 {
		return fmt.Errorf("proxy.timeout_seconds must be non-negative; got %d", c.Proxy.TimeoutSeconds)
	}
	if c.Proxy.MaxRedirects < 0 {
		return fmt.Errorf("proxy.max_redirects must be non-negative; got %d", c.Proxy.MaxRedirects)
	}
	if c.Proxy.IdleConnections < 0 {
		return fmt.Errorf("proxy.idle_connections must be non-negative; got %d", c.Proxy.IdleConnections)
	}
	if c.Identity.SessionTTLMinutes < 0 {
		return fmt.Errorf("identity.session_ttl_minutes must be non-negative; got %d", c.Identity.SessionTTLMinutes)
	}

	for _, o := range c.Proxy.AllowedOrigins {
		if o == "*" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
			return fmt.Errorf("proxy.allowed_origins entries must be \"*\" or scheme://host[:port]; got %q", o)
		}
	}

	// Proxy base URL: optional, but must be absolute http(s) when given.
	if c.Catalog.ProxyBaseURL != "" {
		u, err := url.Parse(c.Catalog.ProxyBaseURL)
		if err != nil {
			return fmt.Errorf("catalog.proxy_base_url is not a valid URL: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("catalog.proxy_base_url must be an absolute http(s) URL; got %q", c.Catalog.ProxyBaseURL)
		}
	}

	switch strings.ToLower(c.Identity.Provider) {
	case "", "memory", "none":
		// valid
	case "firebase":
		if c.Identity.APIKey == "" {
			return fmt.Errorf("identity.api_key is required for the firebase provider")
		}
	default:
		return fmt.Errorf("identity.provider must be one of: memory, firebase, none; got %q", c.Identity.Provider)
	}
	if c.Identity.BaseURL != "" {
		u, err := url.Parse(c.Identity.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("identity.base_url must be an absolute URL; got %q", c.Identity.BaseURL)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, "/")
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, TimeoutSeconds, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key. Setting
// max_redirects=0 therefore results in the default of 5.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Proxy.TimeoutSeconds == 0 {
		c.Proxy.TimeoutSeconds = 20
	}
	if c.Proxy.MaxRedirects == 0 {
		c.Proxy.MaxRedirects = 5
	}
	if c.Proxy.IdleConnections == 0 {
		c.Proxy.IdleConnections = 100
	}
	if c.Proxy.UserAgent == "" {
		c.Proxy.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	if len(c.Proxy.AllowedOrigins) == 0 {
		c.Proxy.AllowedOrigins = []string{"*"}
	}
	c.Catalog.ProxyBaseURL = strings.TrimRight(c.Catalog.ProxyBaseURL, "/")
	c.Identity.Provider = strings.ToLower(c.Identity.Provider)
	if c.Identity.Provider == "" {
		c.Identity.Provider = "memory"
	}
	if c.Identity.SessionTTLMinutes == 0 {
		c.Identity.SessionTTLMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may carry the identity session secret and API key.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
