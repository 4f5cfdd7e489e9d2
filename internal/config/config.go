package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where LoadConfig looks when no path is given
const DefaultConfigPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment Environment      `yaml:"environment"`
	Endpoints   string           `yaml:"endpoints"`
	FixturesDir string           `yaml:"fixtures_dir"`
	Generation  GenerationConfig `yaml:"generation"`
	Test        TestConfig       `yaml:"test"`
	Reporting   ReportingConfig  `yaml:"reporting"`
	Logging     LoggingConfig    `yaml:"logging"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Store       StoreConfig      `yaml:"store"`
}

// Environment holds environment-specific configuration
type Environment struct {
	BaseURL string     `yaml:"base_url"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type  string `yaml:"type"`
	Token string `yaml:"token"`
}

// GenerationConfig controls path generation
type GenerationConfig struct {
	MaxDepth     int   `yaml:"max_depth"`
	ValidPaths   int   `yaml:"valid_paths"`
	InvalidPaths int   `yaml:"invalid_paths"`
	Seed         int64 `yaml:"seed"`
}

// TestConfig holds test execution configuration
type TestConfig struct {
	Concurrent bool    `yaml:"concurrent"`
	MaxWorkers int     `yaml:"max_workers"`
	Timeout    int     `yaml:"timeout"`
	RateLimit  float64 `yaml:"rate_limit"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
	Detailed  bool     `yaml:"detailed"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Dir     string `yaml:"dir"`
	Level   string `yaml:"level"`
	Verbose bool   `yaml:"verbose"`
}

// MetricsConfig holds the Prometheus listener configuration
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// StoreConfig holds the optional SQL verdict store connection
type StoreConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Enabled reports whether a verdict store is configured
func (s StoreConfig) Enabled() bool {
	return s.Type != ""
}

// LoadConfig loads the configuration from a YAML file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at %s", configPath)
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML over path counts so an explicit 0 disables that family
	config := Config{Generation: GenerationConfig{ValidPaths: 3, InvalidPaths: 3}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override from environment variables if set
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		config.Environment.Auth.Token = token
	}
	if baseURL := os.Getenv("API_BASE_URL"); baseURL != "" {
		config.Environment.BaseURL = baseURL
	}
	if password := os.Getenv("STORE_PASSWORD"); password != "" {
		config.Store.Password = password
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Environment.BaseURL == "" {
		c.Environment.BaseURL = "http://127.0.0.1:8000"
	}
	if c.Endpoints == "" {
		c.Endpoints = "api_config.yaml"
	}
	if c.FixturesDir == "" {
		c.FixturesDir = "test_data"
	}
	if c.Generation.MaxDepth == 0 {
		c.Generation.MaxDepth = 3
	}
	if c.Test.MaxWorkers == 0 {
		c.Test.MaxWorkers = 5
	}
	if c.Test.Timeout == 0 {
		c.Test.Timeout = 30
	}
	if len(c.Reporting.Format) == 0 {
		c.Reporting.Format = []string{"json"}
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = filepath.Join("reports")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Generation.MaxDepth < 1 {
		return fmt.Errorf("generation.max_depth must be at least 1, got %d", c.Generation.MaxDepth)
	}
	if c.Generation.ValidPaths < 0 || c.Generation.InvalidPaths < 0 {
		return fmt.Errorf("generation path counts must not be negative")
	}
	if c.Test.MaxWorkers < 1 {
		return fmt.Errorf("test.max_workers must be at least 1, got %d", c.Test.MaxWorkers)
	}
	if c.Test.Timeout < 0 {
		return fmt.Errorf("test.timeout must not be negative, got %d", c.Test.Timeout)
	}
	if c.Test.RateLimit < 0 {
		return fmt.Errorf("test.rate_limit must not be negative, got %v", c.Test.RateLimit)
	}
	switch c.Store.Type {
	case "", "postgres", "mysql", "sqlserver":
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}
	return nil
}
