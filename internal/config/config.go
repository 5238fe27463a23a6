// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.calorieninjas.com/v1/nutrition"
	DefaultSlot    = "nutrition_history"
)

// Config holds all nutrilog settings.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GatewayConfig configures the upstream nutrition lookup.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// Empty means no client-side timeout.
	Timeout string `yaml:"timeout"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	Slot   string `yaml:"slot"`
}

type LoggingConfig struct {
	Mode string `yaml:"mode"` // dev, prod
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8011,
		},
		Gateway: GatewayConfig{
			BaseURL: DefaultBaseURL,
		},
		Storage: StorageConfig{
			DBPath: "nutrilog.db",
			Slot:   DefaultSlot,
		},
		Logging: LoggingConfig{
			Mode: "dev",
		},
	}
}

// Load reads the optional YAML file at path, then a .env file in the
// working directory if one exists, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CALORIENINJAS_API_KEY"); v != "" {
		c.Gateway.APIKey = v
	}
	if v := os.Getenv("NUTRILOG_BASE_URL"); v != "" {
		c.Gateway.BaseURL = v
	}
	if v := os.Getenv("NUTRILOG_TIMEOUT"); v != "" {
		c.Gateway.Timeout = v
	}
	if v := os.Getenv("NUTRILOG_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("NUTRILOG_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("NUTRILOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("NUTRILOG_LOG_MODE"); v != "" {
		c.Logging.Mode = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("gateway base_url is required")
	}
	if _, err := c.Gateway.GetTimeout(); err != nil {
		return err
	}
	if c.Storage.DBPath == "" {
		return errors.New("storage db_path is required")
	}
	if c.Storage.Slot == "" {
		c.Storage.Slot = DefaultSlot
	}
	return nil
}

// GetTimeout parses Timeout. Zero means none.
func (g GatewayConfig) GetTimeout() (time.Duration, error) {
	if g.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid gateway timeout %q: %w", g.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid gateway timeout %q", g.Timeout)
	}
	return d, nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
