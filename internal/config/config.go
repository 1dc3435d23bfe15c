// Package config loads gateway configuration from defaults, an optional
// quadmarket.yaml file, and QM__ prefixed environment variables — later
// sources override earlier ones.
//
// Environment variable transformation:
//   - QM__SERVER__PORT → server.port
//   - QM__OIDC__CLIENT_ID → oidc.clientId (underscores become camelCase)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "quadmarket.yaml"

// EnvPrefix for environment variable overrides.
const EnvPrefix = "QM__"

// Config is the fully resolved gateway configuration.
type Config struct {
	// Env is "development" or "production". Controls cookie security flags
	// and how much backend error detail is surfaced to callers.
	Env string `koanf:"env"`

	Server  Server  `koanf:"server"`
	OIDC    OIDC    `koanf:"oidc"`
	API     API     `koanf:"api"`
	Session Session `koanf:"session"`
}

// Server holds the listen address for the gateway itself.
type Server struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdownTimeout"`
}

// OIDC holds the identity provider registration. ClientID and ClientSecret
// are deliberately not validated at load time: their absence is reported by
// the auth flow itself so that it surfaces with the taxonomy's error codes.
type OIDC struct {
	ClientID          string        `koanf:"clientId"`
	ClientSecret      string        `koanf:"clientSecret"`
	AuthorizeEndpoint string        `koanf:"authorizeEndpoint"`
	TokenEndpoint     string        `koanf:"tokenEndpoint"`
	RedirectURI       string        `koanf:"redirectUri"`
	Scope             string        `koanf:"scope"`
	Timeout           time.Duration `koanf:"timeout"`
}

// API holds the backing marketplace API location.
type API struct {
	BaseURL string        `koanf:"baseUrl"`
	Timeout time.Duration `koanf:"timeout"`
}

// Session controls the guard middleware.
type Session struct {
	// ProtectedPaths are the patterns the guard intercepts. A trailing "/*"
	// matches the subtree; everything else matches exactly.
	ProtectedPaths []string `koanf:"protectedPaths"`

	// SkewBuffer is how long before actual expiry a token is treated as
	// expiring, so in-flight requests never race expiry.
	SkewBuffer time.Duration `koanf:"skewBuffer"`

	// RefreshTokenMaxAge is the refresh token cookie's fixed validity window.
	RefreshTokenMaxAge time.Duration `koanf:"refreshTokenMaxAge"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"env":                        "development",
		"server.host":                "localhost",
		"server.port":                3000,
		"server.shutdownTimeout":     "10s",
		"oidc.scope":                 "openid read introspection",
		"oidc.timeout":               "10s",
		"api.baseUrl":                "http://localhost:8000",
		"api.timeout":                "10s",
		"session.protectedPaths":     []string{"/", "/items", "/items/*", "/sublets", "/sublets/*"},
		"session.skewBuffer":         "5m",
		"session.refreshTokenMaxAge": "720h",
	}
}

// Load resolves the configuration. If path is empty, quadmarket.yaml is
// searched for in the working directory and its parents; a missing file is
// not an error, env vars and defaults still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}

	if path == "" {
		path = SearchForConfig(ConfigFile, ".")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", TransformEnv), nil); err != nil {
		return nil, fmt.Errorf("config: loading env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Production reports whether the gateway is running in production mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Address returns the host:port the server should bind.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks structural configuration. Provider credentials are not
// checked here; see OIDC.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("config: env must be development or production, got %q", c.Env)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port out of range: %d", c.Server.Port)
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.baseUrl is required")
	}
	if c.OIDC.Timeout <= 0 || c.API.Timeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.Session.SkewBuffer <= 0 {
		return fmt.Errorf("config: session.skewBuffer must be positive")
	}
	if c.Session.RefreshTokenMaxAge <= 0 {
		return fmt.Errorf("config: session.refreshTokenMaxAge must be positive")
	}
	for _, p := range c.Session.ProtectedPaths {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("config: protected path %q must start with /", p)
		}
	}
	return nil
}
