// Package config loads .critpath.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/joshharrison/critpath/internal/calendar"
	"github.com/joshharrison/critpath/internal/project"
)

// FileName is the config file looked up in the working directory.
const FileName = ".critpath.yaml"

// ServerConfig configures `critpath serve`.
type ServerConfig struct {
	// Addr is the listen address for the viewer API
	Addr string `yaml:"addr"`

	// ResultBuffer is how many computed results may wait for delivery
	ResultBuffer int `yaml:"result_buffer"`
}

// ClaudeConfig configures dependency inference.
type ClaudeConfig struct {
	// Model is the Anthropic model id; empty uses the client default
	Model string `yaml:"model"`

	// MaxTokens bounds the inference response
	MaxTokens int64 `yaml:"max_tokens"`
}

// Config represents critpath configuration options
type Config struct {
	// Calendar is the mode used for projects that do not set one
	Calendar calendar.Mode `yaml:"calendar"`

	// Holidays (DD-MM-YYYY) used for projects that list none
	Holidays []string `yaml:"holidays"`

	// StateDir holds the cached last schedule
	StateDir string `yaml:"state_dir"`

	// BaselineDB is the SQLite file for saved baselines
	BaselineDB string `yaml:"baseline_db"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`
	Claude ClaudeConfig `yaml:"claude"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		Calendar:   calendar.ModeWorkdays,
		StateDir:   ".critpath",
		BaselineDB: filepath.Join(".critpath", "baselines.db"),
		LogLevel:   "info",
		Server: ServerConfig{
			Addr:         "127.0.0.1:7420",
			ResultBuffer: 4,
		},
		Claude: ClaudeConfig{
			MaxTokens: 4096,
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed or invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields absent from the file keep their defaults.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromDir loads .critpath.yaml from dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, FileName))
}

// MergeWithFlags applies CLI overrides. Empty values are ignored.
func (c *Config) MergeWithFlags(logLevel, addr string) {
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if addr != "" {
		c.Server.Addr = addr
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Calendar {
	case calendar.ModeCalendar, calendar.ModeWorkdays:
	default:
		return fmt.Errorf("invalid calendar %q, must be one of: calendar, workdays", c.Calendar)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	for _, h := range c.Holidays {
		if _, err := calendar.ParseDate(h); err != nil {
			return fmt.Errorf("invalid holiday: %w", err)
		}
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir cannot be empty")
	}
	if c.BaselineDB == "" {
		return fmt.Errorf("baseline_db cannot be empty")
	}
	if c.Server.ResultBuffer < 1 {
		return fmt.Errorf("server.result_buffer must be >= 1, got %d", c.Server.ResultBuffer)
	}
	if c.Claude.MaxTokens < 1 {
		return fmt.Errorf("claude.max_tokens must be >= 1, got %d", c.Claude.MaxTokens)
	}
	return nil
}

// ApplyDefaults fills calendar settings the project leaves unset. Values
// the project sets always win.
func (c *Config) ApplyDefaults(p *project.Project) {
	if p == nil {
		return
	}
	if p.Calendar == "" {
		p.Calendar = c.Calendar
	}
	if len(p.Holidays) == 0 && len(c.Holidays) > 0 {
		p.Holidays = append([]string(nil), c.Holidays...)
	}
}
