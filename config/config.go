package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schaltwerk/schaltwerk/log"
)

const ConfigFileName = "config.json"

// ShellEnvVar overrides the interactive shell used when a terminal is spawned
// without an application spec.
const ShellEnvVar = "SCHALTWERK_SHELL"

// HomeEnvVar relocates the configuration directory.
const HomeEnvVar = "SCHALTWERK_HOME"

// GetConfigDir returns the path to the application's configuration directory
func GetConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnvVar); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".schaltwerk"), nil
}

// Config represents the application configuration
type Config struct {
	// DefaultShell is the shell started in terminals that have no application spec.
	DefaultShell string `json:"default_shell"`
	// DefaultRows and DefaultCols size terminals created without explicit geometry.
	DefaultRows int `json:"default_rows"`
	DefaultCols int `json:"default_cols"`
	// OutputBufferLimit is the number of output bytes retained per terminal before
	// the oldest bytes are dropped even if no consumer acknowledged them.
	OutputBufferLimit int `json:"output_buffer_limit"`
	// StuckPollInterval is the interval (ms) at which visible screens are hashed.
	StuckPollInterval int `json:"stuck_poll_interval_ms"`
	// StuckThreshold is how long (ms) a screen must stay unchanged to count as stuck.
	StuckThreshold int `json:"stuck_threshold_ms"`
	// StuckTailLines is the number of trailing screen lines that are hashed.
	StuckTailLines int `json:"stuck_tail_lines"`
	// KillGracePeriod is the time (ms) between SIGHUP and SIGKILL when a terminal is killed.
	KillGracePeriod int `json:"kill_grace_period_ms"`
	// BranchPrefix is prepended to session names to form worktree branch names.
	BranchPrefix string `json:"branch_prefix"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultShell:      "",
		DefaultRows:       24,
		DefaultCols:       80,
		OutputBufferLimit: 8 << 20,
		StuckPollInterval: 1000,
		StuckThreshold:    30000,
		StuckTailLines:    10,
		KillGracePeriod:   500,
		BranchPrefix:      "schaltwerk/",
	}
}

// LoadConfig loads the configuration from disk. If it cannot be done, we return the default configuration.
func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create and save default config if file doesn't exist
			defaultCfg := DefaultConfig()
			if saveErr := saveConfig(defaultCfg); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}

		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	// Unmarshal over the defaults so fields missing from older files keep sane values.
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		log.ErrorLog.Printf("failed to parse config file: %v", err)
		return DefaultConfig()
	}

	return config
}

// saveConfig saves the configuration to disk
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return writeFileAtomic(configPath, data, 0644)
}

// SaveConfig exports the saveConfig function for use by other packages
func SaveConfig(config *Config) error {
	return saveConfig(config)
}

// ResolveShell returns the shell binary for terminals without an application spec.
// SCHALTWERK_SHELL wins over the configured default, which wins over $SHELL.
func (c *Config) ResolveShell() string {
	if shell := os.Getenv(ShellEnvVar); shell != "" {
		return shell
	}
	if c != nil && c.DefaultShell != "" {
		return c.DefaultShell
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

func (c *Config) StuckPollDuration() time.Duration {
	return time.Duration(c.StuckPollInterval) * time.Millisecond
}

func (c *Config) StuckThresholdDuration() time.Duration {
	return time.Duration(c.StuckThreshold) * time.Millisecond
}

func (c *Config) KillGraceDuration() time.Duration {
	return time.Duration(c.KillGracePeriod) * time.Millisecond
}
