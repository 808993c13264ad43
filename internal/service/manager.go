package service

import (
	"github.com/benbjohnson/clock"

	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/constants"
	"github.com/JBibu/backupone/internal/elevation"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/poller"
	"github.com/JBibu/backupone/internal/script"
)

// NewOrchestratorFromConfig wires an Orchestrator from configuration with the
// given querier and launcher.
func NewOrchestratorFromConfig(cfg *config.Config, querier StatusQuerier, launcher elevation.Launcher, logger *logging.Logger) *Orchestrator {
	return NewOrchestrator(Options{
		Querier:  querier,
		Launcher: launcher,
		Builder: script.Builder{
			ServiceName: cfg.Service.Name,
			DisplayName: cfg.Service.DisplayName,
			Description: cfg.Service.Description,
			TempDir:     cfg.WorkDir(),
			StopSettle:  cfg.StopSettle(),
		},
		Poller: &poller.Poller{
			Interval: cfg.PollInterval(),
			Attempts: cfg.Elevation.PollAttempts,
			Clock:    clock.New(),
			Watch:    cfg.Elevation.WatchLog,
			Logger:   logger.Component("poller"),
		},
		Logger:           logger.Component("service"),
		BinaryCandidates: constants.ServiceBinaryCandidates,
	})
}
