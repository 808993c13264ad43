//go:build windows

package service

import (
	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/elevation"
	"github.com/JBibu/backupone/internal/logging"
)

// NewManager returns the SCM-backed orchestrator. The consent prompt is skipped
// when the process is already elevated.
func NewManager(cfg *config.Config, logger *logging.Logger) Manager {
	launcher := elevation.Select()
	if _, direct := launcher.(elevation.DirectLauncher); direct {
		logger.Debug().Msg("Process already elevated, scripts run without consent prompt")
	}
	return NewOrchestratorFromConfig(cfg, SCMQuerier{Name: cfg.Service.Name}, launcher, logger)
}
