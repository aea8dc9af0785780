package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"arbor/log"
)

const ConfigFileName = "config.json"

// GetConfigDir returns the path to the application's configuration directory
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".arbor"), nil
}

// Config represents the application configuration
type Config struct {
	// BranchPrefix is prepended to every worktree branch name.
	BranchPrefix string `json:"branch_prefix"`
	// PushOnCreate pushes a new worktree branch upstream with tracking set.
	PushOnCreate bool `json:"push_on_create"`
	// ReserveEnabled keeps one standby worktree per project for instant claims.
	ReserveEnabled bool `json:"reserve_enabled"`
	// PreservePatterns are copied from the source repo into new worktrees
	// when the files are gitignored. Matched by basename, relative path, or
	// a **/ recursive prefix.
	PreservePatterns []string `json:"preserve_patterns"`
	// ManagedPrefixes are the branch prefixes recognized as worktrees created
	// by arbor when reconciling against git's own listing.
	ManagedPrefixes []string `json:"managed_prefixes"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BranchPrefix:   "arbor/",
		PushOnCreate:   false,
		ReserveEnabled: true,
		PreservePatterns: []string{
			".env",
			".env.*",
			"*.local.json",
			".claude/settings.local.json",
		},
		ManagedPrefixes: []string{"arbor/", "session/"},
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

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		log.ErrorLog.Printf("failed to parse config file: %v", err)
		return DefaultConfig()
	}

	if config.BranchPrefix == "" {
		config.BranchPrefix = DefaultConfig().BranchPrefix
	}
	if len(config.ManagedPrefixes) == 0 {
		config.ManagedPrefixes = []string{config.BranchPrefix}
	}

	return &config
}

// saveConfig saves the configuration to disk
func saveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveConfig exports the saveConfig function for use by other packages
func SaveConfig(config *Config) error {
	return saveConfig(config)
}
