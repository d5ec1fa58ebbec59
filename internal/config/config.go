// Package config loads omsweep settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vecnet/vecnet.openmalaria/internal/emit"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds all omsweep settings.
type Config struct {
	// DataDir holds the run manifest database.
	DataDir string `yaml:"data_dir"`
	// OutputDir is where expanded scenarios are written when no -o is given.
	OutputDir string `yaml:"output_dir"`
	// FilePattern names scenario files; it must contain exactly one %d.
	FilePattern string `yaml:"file_pattern"`
	// ManifestFile is the CSV written next to the scenarios. Empty disables it.
	ManifestFile string `yaml:"manifest_file"`
	SeedFloor    int64  `yaml:"seed_floor"`
	RecordRuns   bool   `yaml:"record_runs"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultDir returns ~/.omsweep.
func DefaultDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".omsweep")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:      DefaultDir(),
		OutputDir:    "scenarios",
		FilePattern:  emit.DefaultFilePattern,
		ManifestFile: emit.DefaultManifestFile,
		SeedFloor:    1000,
		RecordRuns:   true,
		LogLevel:     "info",
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("OMSWEEP_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("OMSWEEP_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("OMSWEEP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("OMSWEEP_SEED_FLOOR"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: OMSWEEP_SEED_FLOOR: %w", err)
		}
		c.SeedFloor = n
	}
	return nil
}

// Level parses LogLevel. An empty level means info.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.LogLevel)
}

// Validate checks the configuration for values the expander cannot use.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	if c.SeedFloor < 1 {
		return fmt.Errorf("config: seed_floor must be positive, got %d", c.SeedFloor)
	}
	if err := emit.ValidatePattern(c.FilePattern); err != nil {
		return fmt.Errorf("config: file_pattern: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("config: log_level: %w", err)
	}
	return nil
}
