package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JBibu/backupone/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage backupone configuration",
		Long: `Configuration management commands for backupone.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for backupone.
Press Enter to keep the value shown in brackets.

Use --force to overwrite an existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg := config.NewConfig()
			if err := promptConfig(cmd.InOrStdin(), out, cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.SaveConfig(cfg, path); err != nil {
				return err
			}

			GetLogger().Debug().Str("path", path).Msg("Configuration written")
			fmt.Fprintf(out, "\nConfiguration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// promptConfig asks for the commonly changed settings.
func promptConfig(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "BackupONE Configuration Setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	cfg.Service.ResourceDir = promptString(reader, out, "Resource directory (empty = next to executable)", cfg.Service.ResourceDir)

	var err error
	if cfg.Service.Port, err = promptInt(reader, out, "Service port", cfg.Service.Port); err != nil {
		return err
	}
	if cfg.Backend.SidecarPort, err = promptInt(reader, out, "Sidecar port", cfg.Backend.SidecarPort); err != nil {
		return err
	}
	if cfg.Elevation.PollAttempts, err = promptInt(reader, out, "Seconds to wait for elevated scripts", cfg.Elevation.PollAttempts); err != nil {
		return err
	}
	cfg.Logging.Level = promptString(reader, out, "Log level (debug, info, warn, error)", cfg.Logging.Level)
	return nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long:  `Display the effective configuration: file values over built-in defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	resourceDir := cfg.Service.ResourceDir
	if resourceDir == "" {
		resourceDir = "<next to executable>"
	}

	fmt.Fprintln(w, "Current Configuration")
	fmt.Fprintln(w, "=====================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Service:")
	fmt.Fprintf(w, "  Name:          %s\n", cfg.Service.Name)
	fmt.Fprintf(w, "  Display name:  %s\n", cfg.Service.DisplayName)
	fmt.Fprintf(w, "  Resource dir:  %s\n", resourceDir)
	fmt.Fprintf(w, "  Port:          %d\n", cfg.Service.Port)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Elevation:")
	fmt.Fprintf(w, "  Poll interval: %s\n", cfg.PollInterval())
	fmt.Fprintf(w, "  Poll attempts: %d\n", cfg.Elevation.PollAttempts)
	fmt.Fprintf(w, "  Stop settle:   %s\n", cfg.StopSettle())
	fmt.Fprintf(w, "  Watch log:     %t\n", cfg.Elevation.WatchLog)
	fmt.Fprintf(w, "  Script dir:    %s\n", cfg.WorkDir())
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Backend:")
	fmt.Fprintf(w, "  Sidecar port:  %d\n", cfg.Backend.SidecarPort)
	fmt.Fprintf(w, "  Health probe:  %s, %d retries\n", cfg.HealthTimeout(), cfg.Backend.HealthRetries)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Logging:")
	fmt.Fprintf(w, "  Level:         %s\n", cfg.Logging.Level)
	if cfg.Logging.File {
		fmt.Fprintf(w, "  File:          %s\n", config.DefaultLogFile())
	} else {
		fmt.Fprintln(w, "  File:          disabled")
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
