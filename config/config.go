// Package config loads the assistant's runtime configuration from
// YAML with environment variable overrides for secrets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied for missing fields.
const (
	DefaultProvider          = "openai"
	DefaultInventoryPath     = "./inventory.db"
	DefaultCheckpointBackend = "sqlite"
	DefaultCheckpointDSN     = "./threads.db"
	DefaultMetricsAddr       = ":9090"
	DefaultMaxSteps          = 25
)

// Config is the full runtime configuration.
type Config struct {
	// Provider selects the chat backend: "openai", "anthropic" or
	// "mock" (for offline demos).
	Provider string `yaml:"provider"`

	// Model is the provider-specific model name. Empty uses the
	// provider's default.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the provider
	// API key. Keys are never placed in the config file itself.
	APIKeyEnv string `yaml:"api_key_env"`

	// InventoryPath is the SQLite file for products, orders and
	// employees.
	InventoryPath string `yaml:"inventory_path"`

	// SeedInventory loads demo products and employees into an empty
	// inventory database.
	SeedInventory bool `yaml:"seed_inventory"`

	// CheckpointBackend selects thread persistence: "memory",
	// "sqlite", "mysql" or "dynamodb".
	CheckpointBackend string `yaml:"checkpoint_backend"`

	// CheckpointDSN is backend-specific: a file path for sqlite, a DSN
	// for mysql, a table name for dynamodb. Unused for memory.
	CheckpointDSN string `yaml:"checkpoint_dsn"`

	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// MaxSteps bounds the number of graph steps per turn.
	MaxSteps int `yaml:"max_steps"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Provider:          DefaultProvider,
		InventoryPath:     DefaultInventoryPath,
		CheckpointBackend: DefaultCheckpointBackend,
		CheckpointDSN:     DefaultCheckpointDSN,
		MetricsAddr:       DefaultMetricsAddr,
		MaxSteps:          DefaultMaxSteps,
	}
}

// FromFile loads configuration from a YAML file, filling unset fields
// with defaults.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses YAML data into a Config, filling unset fields with
// defaults.
func FromYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unusable configurations.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.CheckpointBackend {
	case "memory", "sqlite", "mysql", "dynamodb":
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.CheckpointBackend)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps cannot be negative")
	}
	return nil
}

// APIKey resolves the provider API key from the environment. The
// variable defaults per provider when APIKeyEnv is unset.
func (c Config) APIKey() string {
	envVar := c.APIKeyEnv
	if envVar == "" {
		switch c.Provider {
		case "openai":
			envVar = "OPENAI_API_KEY"
		case "anthropic":
			envVar = "ANTHROPIC_API_KEY"
		default:
			return ""
		}
	}
	return os.Getenv(envVar)
}
