package config

import (
	"fmt"
	"os"

	"task-observer/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from a YAML file. A .env file
// in the working directory is loaded first (if present); TASK_API_URL and
// TASK_CHANNEL_URL environment variables override the file values so the
// backend location never has to be baked into the config.
func NewConfig(configPath string) (*Config, error) {
	// Missing .env is fine; real env always wins over the file
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyEnvOverrides()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TASK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("TASK_CHANNEL_URL"); v != "" {
		c.Channel.URL = v
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Buffer.Capacity <= 0 {
		c.Buffer.Capacity = 180
	}
	if c.Channel.ReconnectAttempts <= 0 {
		c.Channel.ReconnectAttempts = 5
	}
	if c.Channel.ReconnectDelaySec <= 0 {
		c.Channel.ReconnectDelaySec = 2
	}
	if c.Watch.RefreshIntervalSec <= 0 {
		c.Watch.RefreshIntervalSec = 30
	}
	if c.Watch.RenderIntervalSec <= 0 {
		c.Watch.RenderIntervalSec = 5
	}
	if c.Sim.TickIntervalMs <= 0 {
		c.Sim.TickIntervalMs = 1000
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url cannot be empty")
	}
	if c.Channel.URL == "" {
		return fmt.Errorf("channel url cannot be empty")
	}

	// Simulator settings are only checked when a port is configured
	if c.Sim.Port != 0 {
		if c.Sim.Port <= 1024 || c.Sim.Port > 65535 {
			return fmt.Errorf("invalid simulator port number: %d (must be between 1025 and 65535)", c.Sim.Port)
		}
		if c.Sim.Storage.DBType == "" {
			return fmt.Errorf("database type cannot be empty")
		}
		if c.Sim.Storage.DBType == "sqlite" && c.Sim.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
		if c.Sim.Storage.DBType == "postgres" && c.Sim.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
