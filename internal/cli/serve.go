package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JBibu/backupone/internal/backend"
	"github.com/JBibu/backupone/internal/commands"
	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/ipc"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/service"
	"github.com/JBibu/backupone/internal/version"
)

// newServeCmd creates the 'serve' command.
func newServeCmd() *cobra.Command {
	var endpoint string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve service operations to the desktop application",
		Long: `Run the control server the desktop application talks to.

Listens on a named pipe on Windows and a Unix socket elsewhere, readable by
the current user only. Runs until interrupted (Ctrl+C).

Example:
  backupone serve
  backupone serve --endpoint /tmp/backupone.sock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := GetLogger()

			if endpoint == "" {
				if endpoint, err = ipc.DefaultEndpoint(); err != nil {
					return fmt.Errorf("failed to resolve control endpoint: %w", err)
				}
			}
			if ipc.EndpointInUse(endpoint) {
				return fmt.Errorf("a control server is already running on %s", endpoint)
			}

			server := ipc.NewServerWithEndpoint(newCommandHandler(cfg, log), log.Component("ipc"), endpoint)
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start control server: %w", err)
			}
			defer server.Stop()

			log.Info().
				Str("version", version.Version).
				Str("endpoint", endpoint).
				Str("service", cfg.Service.Name).
				Msg("Control server running (Ctrl+C to stop)")

			<-cmd.Context().Done()
			log.Info().Msg("Shutting down control server")
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Pipe name or socket path (default: per-user location)")

	return cmd
}

// newCommandHandler wires the command layer from configuration.
func newCommandHandler(cfg *config.Config, log *logging.Logger) *commands.Handler {
	mgr := service.NewManager(cfg, log)
	prober := backend.NewHealthChecker(cfg.Service.Port, cfg.HealthTimeout(), cfg.Backend.HealthRetries, log.Component("health"))
	ports := backend.Ports{Service: cfg.Service.Port, Sidecar: cfg.Backend.SidecarPort}
	return commands.NewHandler(mgr, prober, ports, log.Component("commands"))
}
