package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mblarsen/wsl-notifyd/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notification service.",
	Long: `Own org.freedesktop.Notifications on the session bus and relay
notifications to the renderer, which is started on demand.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("Starting daemon...", "version", version)
		d, err := daemon.New(daemon.Options{Config: cfg, Version: version})
		if err != nil {
			return err
		}
		return d.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
