// BackupONE service manager: installs, removes, starts and stops the BackupONE
// Windows service and serves those operations to the desktop application.
//
// Build with: go build -ldflags "-X main.Version=... -X main.BuildTime=..." ./cmd/backupone
package main

import (
	"os"

	"github.com/JBibu/backupone/internal/cli"
	"github.com/JBibu/backupone/internal/version"
)

// Version information, overridden at link time.
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	os.Exit(cli.Execute())
}
