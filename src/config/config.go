// Package config loads the assistant configuration from YAML with
// environment variable expansion, so API keys can live in the environment
// (or a .env file) instead of the config file itself.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/libris-ai/libris/src/library"
	"github.com/libris-ai/libris/src/models"
)

// Config is the complete assistant configuration.
type Config struct {
	Model   ModelConfig    `yaml:"model"`
	Library library.Config `yaml:"library"`
	Agent   AgentConfig    `yaml:"agent"`
	Logging LoggingConfig  `yaml:"logging"`
}

// ModelConfig selects the language model.
type ModelConfig struct {
	APIKey string `yaml:"api_key"`
	Name   string `yaml:"name"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	MaxRounds     int `yaml:"max_rounds"`
	ModelAttempts int `yaml:"model_attempts"`
	Workers       int `yaml:"workers"`

	RetryBackoff time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RetryBackoffRaw string `yaml:"retry_backoff"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Name:   models.DefaultGeminiModel,
		},
		Library: library.Config{Driver: "sqlite", Path: "library.db"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path. Environment variables
// in the format ${VAR_NAME} are expanded before parsing; duration strings are
// parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks the fields the assistant cannot run without.
func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Library.Driver == "postgres" && c.Library.DSN == "" {
		return fmt.Errorf("library.dsn is required for the postgres driver")
	}
	return nil
}

func parseDurations(cfg *Config) error {
	if cfg.Agent.RetryBackoffRaw != "" {
		d, err := time.ParseDuration(cfg.Agent.RetryBackoffRaw)
		if err != nil {
			return fmt.Errorf("parsing retry_backoff %q: %w", cfg.Agent.RetryBackoffRaw, err)
		}
		cfg.Agent.RetryBackoff = d
	}
	return nil
}
