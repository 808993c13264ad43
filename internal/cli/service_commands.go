package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JBibu/backupone/internal/backend"
	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/progress"
	"github.com/JBibu/backupone/internal/script"
	"github.com/JBibu/backupone/internal/service"
)

// newServiceCmd creates the 'service' command group for Windows service management.
func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Windows service management commands",
		Long: `Manage the BackupONE Windows service.

Available commands:
  status     Show service status
  install    Install and start the service
  uninstall  Stop and remove the service
  start      Start the service
  stop       Stop the service
  health     Probe the service health endpoint

Install, uninstall, start and stop ask for administrator approval.`,
	}

	cmd.AddCommand(newServiceStatusCmd())
	cmd.AddCommand(newServiceInstallCmd())
	cmd.AddCommand(newServiceUninstallCmd())
	cmd.AddCommand(newServiceStartCmd())
	cmd.AddCommand(newServiceStopCmd())
	cmd.AddCommand(newServiceHealthCmd())

	return cmd
}

// newServiceStatusCmd creates the 'service status' command.
func newServiceStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		Long: `Show whether the BackupONE service is installed and running.
Does not require administrator privileges.

Example:
  backupone service status
  backupone service status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mgr := service.NewManager(cfg, GetLogger())
			return printStatus(cmd.OutOrStdout(), cfg, mgr.Status(cmd.Context()), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print status as JSON")

	return cmd
}

func printStatus(w io.Writer, cfg *config.Config, st service.ServiceStatus, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Service: %s (%s)\n", cfg.Service.DisplayName, cfg.Service.Name)
	fmt.Fprintf(w, "Status:  %s\n", st)
	return nil
}

// newServiceInstallCmd creates the 'service install' command.
func newServiceInstallCmd() *cobra.Command {
	var resourceDir string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the Windows service",
		Long: `Install the BackupONE service and start it.

The service executable is looked up under <resource-dir>/binaries. The
resource directory defaults to [service] resource_dir in the configuration,
then to the directory of this executable.

Example:
  backupone service install
  backupone service install --resource-dir "C:\Program Files\C3i Backup ONE"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if resourceDir == "" {
				if resourceDir, err = cfg.ResolveResourceDir(); err != nil {
					return err
				}
			}
			return runOperation(cmd, cfg, script.Install, "Service installed", func(mgr service.Manager) error {
				return mgr.Install(cmd.Context(), resourceDir)
			})
		},
	}

	cmd.Flags().StringVar(&resourceDir, "resource-dir", "", "Directory containing the bundled binaries")

	return cmd
}

// newServiceUninstallCmd creates the 'service uninstall' command.
func newServiceUninstallCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall the Windows service",
		Long: `Stop the BackupONE service if running and remove it.

Example:
  backupone service uninstall
  backupone service uninstall --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Remove the %s service?", cfg.Service.DisplayName))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}
			return runOperation(cmd, cfg, script.Uninstall, "Service uninstalled", func(mgr service.Manager) error {
				return mgr.Uninstall(cmd.Context())
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// newServiceStartCmd creates the 'service start' command.
func newServiceStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Windows service",
		Long: `Start the BackupONE service. It must be installed first.

Example:
  backupone service start`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runOperation(cmd, cfg, script.Start, "Service started", func(mgr service.Manager) error {
				return mgr.Start(cmd.Context())
			})
		},
	}
}

// newServiceStopCmd creates the 'service stop' command.
func newServiceStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the Windows service",
		Long: `Stop the BackupONE service.

Example:
  backupone service stop`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runOperation(cmd, cfg, script.Stop, "Service stopped", func(mgr service.Manager) error {
				return mgr.Stop(cmd.Context())
			})
		},
	}
}

// newServiceHealthCmd creates the 'service health' command.
func newServiceHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the service health endpoint",
		Long: `Send one request to http://localhost:<port>/healthcheck.
Exits non-zero when the service does not answer.

Example:
  backupone service health`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			checker := backend.NewHealthChecker(cfg.Service.Port, cfg.HealthTimeout(), cfg.Backend.HealthRetries, GetLogger().Component("health"))
			if err := checker.Check(cmd.Context()); err != nil {
				return fmt.Errorf("service is not healthy at %s: %w", checker.Endpoint(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Service is healthy at %s\n", checker.Endpoint())
			return nil
		},
	}
}

// runOperation runs one mutating operation with progress on stderr.
func runOperation(cmd *cobra.Command, cfg *config.Config, op script.Operation, done string, fn func(service.Manager) error) error {
	reporter := progress.New(os.Stderr)

	mgr := service.NewManager(cfg, GetLogger())
	if orch, ok := mgr.(*service.Orchestrator); ok {
		mgr = orch.WithObserver(progressObserver(reporter))
	}

	reporter.Start(startDescription(op))
	if err := fn(mgr); err != nil {
		reporter.Error(err)
		return err
	}
	reporter.Finish(done)
	return nil
}
