// Package config loads and validates kingraph configuration.
// Configuration lives at .kingraph/config.yaml in the workspace; environment
// variables override the file for secrets and endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all kingraph configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// AI session configuration
	Session SessionConfig `yaml:"session"`

	// Wallet / RPC configuration
	Wallet WalletConfig `yaml:"wallet"`

	// Persistence
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SessionConfig configures the Gemini Live session.
type SessionConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`

	// SystemPrompt is prepended to the live session setup.
	SystemPrompt string `yaml:"system_prompt"`
}

// WalletConfig configures the wallet executor.
type WalletConfig struct {
	// RPCURL is the blockchain JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url" validate:"required,url"`

	// Backend selects the signing backend: extension, mobile-adapter, raw-keypair.
	Backend string `yaml:"backend" validate:"oneof=extension mobile-adapter raw-keypair"`

	// Secret is the base58 or base64 encoded secret key for the raw-keypair
	// backend. Never written back to disk by Save.
	Secret string `yaml:"-"`

	// Commitment level used when confirming transactions.
	Commitment string `yaml:"commitment" validate:"oneof=processed confirmed finalized"`

	Timeout string `yaml:"timeout"`
}

// StorageConfig configures local persistence.
type StorageConfig struct {
	// DatabasePath is the SQLite file holding the serialized graph state.
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "kingraph",
		Version: "0.4.0",

		Session: SessionConfig{
			Model:   "gemini-2.0-flash-live-001",
			Timeout: "120s",
		},

		Wallet: WalletConfig{
			RPCURL:     "https://api.devnet.solana.com",
			Backend:    "raw-keypair",
			Commitment: "confirmed",
			Timeout:    "60s",
		},

		Storage: StorageConfig{
			DatabasePath: ".kingraph/state.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Session.APIKey = key
	}
	if url := os.Getenv("KINGRAPH_RPC_URL"); url != "" {
		c.Wallet.RPCURL = url
	}
	if secret := os.Getenv("KINGRAPH_WALLET_SECRET"); secret != "" {
		c.Wallet.Secret = secret
	}
	if path := os.Getenv("KINGRAPH_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
}

var validate = validator.New()

// Validate checks structural constraints on the loaded config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SessionTimeout returns the session timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// WalletTimeout returns the wallet RPC timeout as a duration.
func (c *Config) WalletTimeout() time.Duration {
	d, err := time.ParseDuration(c.Wallet.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}
