package constants

import (
	"time"
)

// Service identity
const (
	// ServiceName - the SCM key name of the backup service
	ServiceName = "C3iBackupONE"

	// ServiceDisplayName - name shown in services.msc
	ServiceDisplayName = "C3i Backup ONE Service"

	// ServiceDescription - description set after creation
	ServiceDescription = "Background backup service for C3i Backup ONE"

	// ServicePort - port the installed service listens on
	ServicePort = 4097

	// DefaultSidecarPort - port of the in-process backend used when the service is not in use
	DefaultSidecarPort = 4096
)

// Service executable lookup
const (
	// BinariesDirName - subdirectory of the resource directory holding bundled executables
	BinariesDirName = "binaries"
)

// ServiceBinaryCandidates lists the executable names tried in order under BinariesDirName.
// The target-triple name is what the bundler produces; the short name covers manual installs.
var ServiceBinaryCandidates = []string{
	"zerobyte-service-x86_64-pc-windows-msvc.exe",
	"zerobyte-service.exe",
}

// Completion polling
const (
	// PollInterval - delay between log samples
	PollInterval = 1 * time.Second

	// PollAttempts - number of samples before the poll window closes (10s total)
	PollAttempts = 10

	// StopSettleDelay - pause between stopping and deleting during uninstall
	StopSettleDelay = 3 * time.Second

	// ErrorMarker - prefix the generated scripts write on a checked-step failure
	ErrorMarker = "ERROR:"
)

// Backend health probe
const (
	// HealthCheckTimeout - overall budget for one probe
	HealthCheckTimeout = 2 * time.Second

	// HealthCheckPath - endpoint served by the running service
	HealthCheckPath = "/healthcheck"

	// HealthCheckRetries - retries inside the probe budget
	HealthCheckRetries = 1
)

// IPC
const (
	// PipeName - named pipe used by the control server on Windows
	PipeName = `\\.\pipe\backupone-control`

	// SocketName - socket file name used by the control server on Unix
	SocketName = "control.sock"

	// IPCReadTimeout - per-connection deadline for simple requests
	IPCReadTimeout = 30 * time.Second

	// IPCOperationTimeout - per-connection deadline for mutating requests.
	// Must cover the full poll window plus the consent prompt.
	IPCOperationTimeout = 5 * time.Minute
)

// Application directories
const (
	// AppVendorDir - vendor directory under %APPDATA% / %LOCALAPPDATA%
	AppVendorDir = "C3i"

	// AppDirName - product directory under the vendor directory
	AppDirName = "BackupONE"

	// UnixConfigDirName - directory under the user config dir on non-Windows systems
	UnixConfigDirName = "backupone"

	// ConfigFileName - INI configuration file name
	ConfigFileName = "backupone.conf"

	// LogFileName - rotating log file name
	LogFileName = "backupone.log"
)
