package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/mblarsen/wsl-notifyd/internal/config"
	"github.com/mblarsen/wsl-notifyd/internal/xdgpath"
)

var (
	version    = "dev"
	configPath string
	noColor    bool

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "wsl-notifyd",
	Short: "Show Linux desktop notifications as Windows toasts.",
	Long: `wsl-notifyd owns the desktop notification service on the session bus
inside WSL and relays every notification to a renderer process that shows it
as a native Windows toast. Clicks, replies and dismissals travel back to the
application that sent the notification.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c
		setupLogging(cfg.LogLevel(), noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/wsl-notifyd/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored log output.")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := xdgpath.ConfigPath("config.toml")
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}
	return config.Load(path)
}

// Execute runs the command line. Interrupts cancel the command's context.
func Execute(ctx context.Context, v string) error {
	version = v
	return fang.Execute(ctx, rootCmd,
		fang.WithVersion(v),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
}
