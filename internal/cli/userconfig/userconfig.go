package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName  = "tripsplit"
	configFileName = "config.json"
)

// UserConfig represents the user's local configuration stored in ~/.config/tripsplit/config.json
type UserConfig struct {
	ServerURL       string `json:"server_url,omitempty"`
	SelectedGroupID string `json:"selected_group_id,omitempty"`
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", configDirName)
	return filepath.Join(configDir, configFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return &UserConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// SetServerURL remembers the server used for later commands
func SetServerURL(serverURL string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	if cfg.ServerURL != serverURL {
		// A group id from another server means nothing here
		cfg.SelectedGroupID = ""
	}
	cfg.ServerURL = serverURL
	return Save(cfg)
}

// SetSelectedGroup updates the selected group and saves the config
func SetSelectedGroup(groupID string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}

	cfg.SelectedGroupID = groupID
	return Save(cfg)
}

// GetSelectedGroup returns the selected group id, or empty string if not set
func GetSelectedGroup() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	return cfg.SelectedGroupID, nil
}
