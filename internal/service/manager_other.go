//go:build !windows

package service

import (
	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/logging"
)

// NewManager returns Unsupported on platforms without a Service Control Manager.
func NewManager(cfg *config.Config, logger *logging.Logger) Manager {
	return Unsupported{}
}
