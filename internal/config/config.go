package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Provider  ProviderConfig
	Reconcile ReconcileConfig
	OIDC      OIDCConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/nacl-manager.db"`
}

// ProviderConfig selects the provider backend. The file shim keeps provider
// state in a local JSON file; real deployments wire an adapter instead.
type ProviderConfig struct {
	FileShim string `env:"PROVIDER_FILE_SHIM"` // Path to the shim's state file
}

// ReconcileConfig holds reconcile behavior configuration.
type ReconcileConfig struct {
	AutoReconcile   bool          `env:"AUTO_RECONCILE" envDefault:"true"`
	Debounce        time.Duration `env:"RECONCILE_DEBOUNCE" envDefault:"5s"`
	BootstrapAPIKey string        `env:"BOOTSTRAP_API_KEY"`
}

// OIDCConfig holds optional OIDC bearer-token authentication configuration.
type OIDCConfig struct {
	Enabled   bool   `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL string `env:"OIDC_ISSUER_URL"`
	ClientID  string `env:"OIDC_CLIENT_ID"`
	Audiences string `env:"OIDC_AUDIENCES"` // comma-separated, defaults to client id
}

// GetAudiences returns the accepted token audiences as a slice.
func (c *OIDCConfig) GetAudiences() []string {
	if c.Audiences == "" {
		if c.ClientID == "" {
			return nil
		}
		return []string{c.ClientID}
	}
	audiences := strings.Split(c.Audiences, ",")
	for i := range audiences {
		audiences[i] = strings.TrimSpace(audiences[i])
	}
	return audiences
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Provider); err != nil {
		return nil, fmt.Errorf("parsing provider config: %w", err)
	}
	if err := env.Parse(&cfg.Reconcile); err != nil {
		return nil, fmt.Errorf("parsing reconcile config: %w", err)
	}
	if err := env.Parse(&cfg.OIDC); err != nil {
		return nil, fmt.Errorf("parsing oidc config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Provider.FileShim == "" {
		return fmt.Errorf("PROVIDER_FILE_SHIM is required (no other provider backend is bundled)")
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
	}

	return nil
}
