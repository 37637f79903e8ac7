package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment
// variables first.
// Environment variables:
//   - BHF_CONFIG_PATH: config file location (default: ~/.config/bhf.toml)
//   - BHF_HOME: base directory for bhf data (default: ~/.local/share/bhf)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking BHF_CONFIG_PATH
// first, then falling back to ~/.config/bhf.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("BHF_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "bhf.toml"), nil
}

// getBaseDir returns the base directory for bhf data, checking BHF_HOME
// first, then falling back to the XDG default ~/.local/share/bhf.
func getBaseDir() (string, error) {
	if path := os.Getenv("BHF_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "bhf"), nil
}
