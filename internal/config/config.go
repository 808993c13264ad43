package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/JBibu/backupone/internal/constants"
)

// Config represents the backupone.conf file.
//
// Config file location:
//   - Windows: %APPDATA%\C3i\BackupONE\backupone.conf
//   - Unix: ~/.config/backupone/backupone.conf
//
// INI format:
//
//	[service]
//	name = C3iBackupONE
//	display_name = C3i Backup ONE Service
//	description = Background backup service for C3i Backup ONE
//	resource_dir = C:\Program Files\C3i Backup ONE
//	port = 4097
//
//	[elevation]
//	poll_interval_seconds = 1
//	poll_attempts = 10
//	stop_settle_seconds = 3
//	watch_log = true
//	temp_dir =
//
//	[logging]
//	level = info
//	file = true
//	max_size_mb = 10
//	max_backups = 5
//	max_age_days = 30
//	compress = true
//
//	[backend]
//	sidecar_port = 4096
//	health_timeout_seconds = 2
//	health_retries = 1
type Config struct {
	Service   ServiceConfig
	Elevation ElevationConfig
	Logging   LoggingConfig
	Backend   BackendConfig
}

// ServiceConfig identifies the managed service.
type ServiceConfig struct {
	Name        string `ini:"name"`
	DisplayName string `ini:"display_name"`
	Description string `ini:"description"`

	// ResourceDir is the application resource directory searched for the
	// service executable. Empty means the directory of the running binary.
	ResourceDir string `ini:"resource_dir"`

	// Port is where the installed service answers health checks.
	Port int `ini:"port"`
}

// ElevationConfig controls script generation and completion polling.
type ElevationConfig struct {
	// PollIntervalSeconds is the delay between log samples.
	// Minimum: 1, Maximum: 30, Default: 1
	PollIntervalSeconds int `ini:"poll_interval_seconds"`

	// PollAttempts is the number of samples before giving up on the log.
	// Minimum: 1, Maximum: 600, Default: 10
	PollAttempts int `ini:"poll_attempts"`

	// StopSettleSeconds is the pause between stop and delete during uninstall.
	// Minimum: 0, Maximum: 60, Default: 3
	StopSettleSeconds int `ini:"stop_settle_seconds"`

	// WatchLog samples the log as soon as it changes instead of only on the interval.
	WatchLog bool `ini:"watch_log"`

	// TempDir overrides the directory receiving scripts and logs.
	// Empty means the system temp directory.
	TempDir string `ini:"temp_dir"`
}

// LoggingConfig controls the console level and the rotating log file.
type LoggingConfig struct {
	Level      string `ini:"level"`
	File       bool   `ini:"file"`
	MaxSizeMB  int    `ini:"max_size_mb"`
	MaxBackups int    `ini:"max_backups"`
	MaxAgeDays int    `ini:"max_age_days"`
	Compress   bool   `ini:"compress"`
}

// BackendConfig describes how to reach the backup backend.
type BackendConfig struct {
	SidecarPort          int `ini:"sidecar_port"`
	HealthTimeoutSeconds int `ini:"health_timeout_seconds"`
	HealthRetries        int `ini:"health_retries"`
}

// Config validation errors
var (
	ErrMissingServiceName     = errors.New("service name is required")
	ErrInvalidPort            = errors.New("port must be between 1 and 65535")
	ErrInvalidPollInterval    = errors.New("poll_interval_seconds must be between 1 and 30")
	ErrInvalidPollAttempts    = errors.New("poll_attempts must be between 1 and 600")
	ErrInvalidStopSettle      = errors.New("stop_settle_seconds must be between 0 and 60")
	ErrInvalidHealthTimeout   = errors.New("health_timeout_seconds must be between 1 and 60")
	ErrInvalidHealthRetries   = errors.New("health_retries must be between 0 and 5")
	ErrInvalidLogRotationSize = errors.New("max_size_mb must be at least 1")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        constants.ServiceName,
			DisplayName: constants.ServiceDisplayName,
			Description: constants.ServiceDescription,
			Port:        constants.ServicePort,
		},
		Elevation: ElevationConfig{
			PollIntervalSeconds: int(constants.PollInterval / time.Second),
			PollAttempts:        constants.PollAttempts,
			StopSettleSeconds:   int(constants.StopSettleDelay / time.Second),
			WatchLog:            true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       true,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Backend: BackendConfig{
			SidecarPort:          constants.DefaultSidecarPort,
			HealthTimeoutSeconds: int(constants.HealthCheckTimeout / time.Second),
			HealthRetries:        constants.HealthCheckRetries,
		},
	}
}

// LoadConfig loads configuration from backupone.conf.
// If path is empty, uses the default path.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(path), err)
	}

	serviceSection := iniFile.Section("service")
	cfg.Service.Name = serviceSection.Key("name").MustString(constants.ServiceName)
	cfg.Service.DisplayName = serviceSection.Key("display_name").MustString(constants.ServiceDisplayName)
	cfg.Service.Description = serviceSection.Key("description").MustString(constants.ServiceDescription)
	cfg.Service.ResourceDir = serviceSection.Key("resource_dir").String()
	cfg.Service.Port = serviceSection.Key("port").MustInt(constants.ServicePort)

	elevSection := iniFile.Section("elevation")
	cfg.Elevation.PollIntervalSeconds = elevSection.Key("poll_interval_seconds").MustInt(cfg.Elevation.PollIntervalSeconds)
	cfg.Elevation.PollAttempts = elevSection.Key("poll_attempts").MustInt(constants.PollAttempts)
	cfg.Elevation.StopSettleSeconds = elevSection.Key("stop_settle_seconds").MustInt(cfg.Elevation.StopSettleSeconds)
	cfg.Elevation.WatchLog = elevSection.Key("watch_log").MustBool(true)
	cfg.Elevation.TempDir = elevSection.Key("temp_dir").String()

	logSection := iniFile.Section("logging")
	cfg.Logging.Level = logSection.Key("level").MustString("info")
	cfg.Logging.File = logSection.Key("file").MustBool(true)
	cfg.Logging.MaxSizeMB = logSection.Key("max_size_mb").MustInt(10)
	cfg.Logging.MaxBackups = logSection.Key("max_backups").MustInt(5)
	cfg.Logging.MaxAgeDays = logSection.Key("max_age_days").MustInt(30)
	cfg.Logging.Compress = logSection.Key("compress").MustBool(true)

	backendSection := iniFile.Section("backend")
	cfg.Backend.SidecarPort = backendSection.Key("sidecar_port").MustInt(constants.DefaultSidecarPort)
	cfg.Backend.HealthTimeoutSeconds = backendSection.Key("health_timeout_seconds").MustInt(cfg.Backend.HealthTimeoutSeconds)
	cfg.Backend.HealthRetries = backendSection.Key("health_retries").MustInt(constants.HealthCheckRetries)

	return cfg, nil
}

// SaveConfig saves configuration to backupone.conf.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	serviceSection, err := iniFile.NewSection("service")
	if err != nil {
		return fmt.Errorf("failed to create service section: %w", err)
	}
	serviceSection.Key("name").SetValue(cfg.Service.Name)
	serviceSection.Key("display_name").SetValue(cfg.Service.DisplayName)
	serviceSection.Key("description").SetValue(cfg.Service.Description)
	serviceSection.Key("resource_dir").SetValue(cfg.Service.ResourceDir)
	serviceSection.Key("port").SetValue(fmt.Sprintf("%d", cfg.Service.Port))

	elevSection, err := iniFile.NewSection("elevation")
	if err != nil {
		return fmt.Errorf("failed to create elevation section: %w", err)
	}
	elevSection.Key("poll_interval_seconds").SetValue(fmt.Sprintf("%d", cfg.Elevation.PollIntervalSeconds))
	elevSection.Key("poll_attempts").SetValue(fmt.Sprintf("%d", cfg.Elevation.PollAttempts))
	elevSection.Key("stop_settle_seconds").SetValue(fmt.Sprintf("%d", cfg.Elevation.StopSettleSeconds))
	elevSection.Key("watch_log").SetValue(fmt.Sprintf("%t", cfg.Elevation.WatchLog))
	elevSection.Key("temp_dir").SetValue(cfg.Elevation.TempDir)

	logSection, err := iniFile.NewSection("logging")
	if err != nil {
		return fmt.Errorf("failed to create logging section: %w", err)
	}
	logSection.Key("level").SetValue(cfg.Logging.Level)
	logSection.Key("file").SetValue(fmt.Sprintf("%t", cfg.Logging.File))
	logSection.Key("max_size_mb").SetValue(fmt.Sprintf("%d", cfg.Logging.MaxSizeMB))
	logSection.Key("max_backups").SetValue(fmt.Sprintf("%d", cfg.Logging.MaxBackups))
	logSection.Key("max_age_days").SetValue(fmt.Sprintf("%d", cfg.Logging.MaxAgeDays))
	logSection.Key("compress").SetValue(fmt.Sprintf("%t", cfg.Logging.Compress))

	backendSection, err := iniFile.NewSection("backend")
	if err != nil {
		return fmt.Errorf("failed to create backend section: %w", err)
	}
	backendSection.Key("sidecar_port").SetValue(fmt.Sprintf("%d", cfg.Backend.SidecarPort))
	backendSection.Key("health_timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.Backend.HealthTimeoutSeconds))
	backendSection.Key("health_retries").SetValue(fmt.Sprintf("%d", cfg.Backend.HealthRetries))

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
// Returns nil if valid, or an error describing what's wrong.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return ErrMissingServiceName
	}
	if cfg.Service.Port < 1 || cfg.Service.Port > 65535 {
		return ErrInvalidPort
	}
	if cfg.Backend.SidecarPort < 1 || cfg.Backend.SidecarPort > 65535 {
		return ErrInvalidPort
	}
	if cfg.Elevation.PollIntervalSeconds < 1 || cfg.Elevation.PollIntervalSeconds > 30 {
		return ErrInvalidPollInterval
	}
	if cfg.Elevation.PollAttempts < 1 || cfg.Elevation.PollAttempts > 600 {
		return ErrInvalidPollAttempts
	}
	if cfg.Elevation.StopSettleSeconds < 0 || cfg.Elevation.StopSettleSeconds > 60 {
		return ErrInvalidStopSettle
	}
	if cfg.Backend.HealthTimeoutSeconds < 1 || cfg.Backend.HealthTimeoutSeconds > 60 {
		return ErrInvalidHealthTimeout
	}
	if cfg.Backend.HealthRetries < 0 || cfg.Backend.HealthRetries > 5 {
		return ErrInvalidHealthRetries
	}
	if cfg.Logging.File && cfg.Logging.MaxSizeMB < 1 {
		return ErrInvalidLogRotationSize
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.Elevation.PollIntervalSeconds) * time.Second
}

// StopSettle returns the uninstall stop-to-delete pause as a duration.
func (cfg *Config) StopSettle() time.Duration {
	return time.Duration(cfg.Elevation.StopSettleSeconds) * time.Second
}

// HealthTimeout returns the health probe budget as a duration.
func (cfg *Config) HealthTimeout() time.Duration {
	return time.Duration(cfg.Backend.HealthTimeoutSeconds) * time.Second
}

// WorkDir returns the directory receiving generated scripts and their logs.
func (cfg *Config) WorkDir() string {
	if cfg.Elevation.TempDir != "" {
		return cfg.Elevation.TempDir
	}
	return os.TempDir()
}

// ResolveResourceDir returns the configured resource directory, falling back to
// the directory of the running executable.
func (cfg *Config) ResolveResourceDir() (string, error) {
	if cfg.Service.ResourceDir != "" {
		return cfg.Service.ResourceDir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return filepath.Dir(exe), nil
}
