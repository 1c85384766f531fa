package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "PHASERUN_"
)

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PHASERUN_EXECUTION_MAX_WORKERS, ...)
//  2. YAML config file
//  3. Hardcoded defaults
//
// If configPath is empty, the default path is used:
// ~/.config/phaserun/config.yaml.
//
// Environment variables are stripped of the prefix, lowercased, and the
// first underscore becomes the section separator:
//
//	PHASERUN_EXECUTION_MAX_WORKERS -> execution.max_workers
//	PHASERUN_RETRY_BASE_DELAY      -> retry.base_delay
//	PHASERUN_STATE_DIR             -> state_dir (no section)
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "phaserun", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate via the file descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envTransform maps environment variable names to config keys. The first
// underscore separates the section from the field; known top-level keys
// stay unsplit.
func envTransform(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))

	switch lower {
	case "state_dir":
		return lower
	}

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Execution.DefaultTimeout == 0 {
		cfg.Execution.DefaultTimeout = Duration(10 * time.Minute)
	}
	if cfg.Execution.MaxWorkers == 0 {
		cfg.Execution.MaxWorkers = 4
	}
	if cfg.Execution.WorkDir == "" {
		cfg.Execution.WorkDir = "."
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.StateDir = filepath.Join(home, ".local", "share", "phaserun")
		}
	}

	cfg.Retry.ApplyDefaults()

	// Assign positions from list order when not declared.
	for i := range cfg.Workflow {
		if cfg.Workflow[i].Position == 0 {
			cfg.Workflow[i].Position = i + 1
		}
	}
}
