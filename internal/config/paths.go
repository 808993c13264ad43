// Package config provides configuration management for BackupONE.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/JBibu/backupone/internal/constants"
)

// AppDirectory returns the per-user application directory holding the config file
// and the control socket.
//
// Locations:
//   - Windows: %APPDATA%\C3i\BackupONE
//   - Unix: ~/.config/backupone
func AppDirectory() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		return filepath.Join(appData, constants.AppVendorDir, constants.AppDirName), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, constants.UnixConfigDirName), nil
}

// DefaultConfigPath returns the default path for backupone.conf.
func DefaultConfigPath() (string, error) {
	dir, err := AppDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// LogDirectory returns the log directory.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\C3i\BackupONE\logs
//   - Unix: ~/.config/backupone/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "backupone-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, constants.AppVendorDir, constants.AppDirName, "logs")
	}

	dir, err := AppDirectory()
	if err != nil {
		return filepath.Join(os.TempDir(), "backupone-logs")
	}
	return filepath.Join(dir, "logs")
}

// DefaultLogFile returns the rotating log file path inside LogDirectory.
func DefaultLogFile() string {
	return filepath.Join(LogDirectory(), constants.LogFileName)
}
