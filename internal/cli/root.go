// Package cli provides the command-line interface for backupone.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/JBibu/backupone/internal/config"
	"github.com/JBibu/backupone/internal/logging"
	"github.com/JBibu/backupone/internal/service"
	"github.com/JBibu/backupone/internal/version"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitDeclined    = 2
	ExitUnsupported = 3
	ExitCancelled   = 130
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "backupone",
		Short: "BackupONE service manager",
		Long: `BackupONE ` + version.String() + `
Install, remove, start and stop the BackupONE Windows service and
serve those operations to the desktop application.

Service operations ask for administrator approval once per operation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogger(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")

	rootCmd.Version = version.String()
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// initLogger builds the global logger from the configuration file. A broken
// config file still yields a console logger so the error can be reported.
func initLogger(cmd *cobra.Command) error {
	mode := logging.ModeCLI
	if cmd.Name() == "serve" {
		mode = logging.ModeServer
	}
	logger = logging.NewLogger(mode)
	if mode == logging.ModeServer {
		logger.SetOutput(cmd.ErrOrStderr())
	} else {
		logger.SetOutput(cmd.OutOrStdout())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if verbose {
		level = zerolog.DebugLevel
	}
	logging.SetGlobalLevel(level)

	if cfg.Logging.File {
		err := logger.AttachFile(logging.FileOptions{
			Path:       config.DefaultLogFile(),
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("File logging disabled")
		}
	}
	return nil
}

// loadConfig loads and validates the configuration named by --config, or the
// default file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so repeated Ctrl+C presses do not block the sender.
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.ExecuteContext(rootContext)

	signal.Stop(sigChan)
	close(sigChan)

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newServiceCmd())
	rootCmd.AddCommand(newBackendURLCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, service.ErrElevationDeclined):
		return ExitDeclined
	case errors.Is(err, service.ErrPlatformUnsupported):
		return ExitUnsupported
	case errors.Is(err, service.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}
