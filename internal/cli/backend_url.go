package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newBackendURLCmd creates the 'backend-url' command.
func newBackendURLCmd() *cobra.Command {
	var (
		usingService bool
		sidecarPort  int
	)

	cmd := &cobra.Command{
		Use:   "backend-url",
		Short: "Print the backend base URL",
		Long: `Print the URL the desktop application should use to reach the backend:
the installed service port with --service, otherwise the sidecar port.

Example:
  backupone backend-url --service
  backupone backend-url --sidecar-port 5123`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			handler := newCommandHandler(cfg, GetLogger())
			fmt.Fprintln(cmd.OutOrStdout(), handler.GetBackendURL(usingService, sidecarPort))
			return nil
		},
	}

	cmd.Flags().BoolVar(&usingService, "service", false, "Use the installed service instead of the sidecar")
	cmd.Flags().IntVar(&sidecarPort, "sidecar-port", 0, "Sidecar port (default: [backend] sidecar_port)")

	return cmd
}
