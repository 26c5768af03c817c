//go:build linux

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	sdbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/spf13/cobra"

	"github.com/mblarsen/wsl-notifyd/internal/fileutil"
	"github.com/mblarsen/wsl-notifyd/internal/xdgpath"
)

const unitName = "wsl-notifyd.service"

const daemonServiceTemplate = `[Unit]
Description=wsl-notifyd desktop notification relay
After=dbus.socket

[Service]
Type=notify
ExecStart=%s
Restart=on-failure
Environment="WSL_NOTIFYD_LOG_LEVEL=info"

[Install]
WantedBy=default.target
`

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the wsl-notifyd systemd user service.",
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and start the systemd user service.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		executable, err := os.Executable()
		if err != nil {
			return err
		}
		var config string
		if cmd.Flags().Changed("config") {
			if config, err = filepath.Abs(configPath); err != nil {
				return err
			}
		}
		service := unitFile(executable, config)
		if print, _ := cmd.Flags().GetBool("print"); print {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), service)
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: Service configuration printed but not installed.")
			return nil
		}

		servicePath, err := xdgpath.UserUnitPath(unitName)
		if err != nil {
			return err
		}
		if err := fileutil.AtomicWriteFile(servicePath, []byte(service), 0644); err != nil {
			return err
		}

		ctx := cmd.Context()
		conn, err := sdbus.NewUserConnectionContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to systemd: %w", err)
		}
		defer conn.Close()
		if err := conn.ReloadContext(ctx); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}
		if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unitName}, false, true); err != nil {
			return fmt.Errorf("failed to enable %s: %w", unitName, err)
		}
		if err := runJob(ctx, conn.RestartUnitContext, unitName); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Successfully installed wsl-notifyd service. Unit file created at: %s\n", servicePath)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop and remove the systemd user service.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		servicePath, err := xdgpath.UserUnitPath(unitName)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		conn, err := sdbus.NewUserConnectionContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to systemd: %w", err)
		}
		defer conn.Close()
		// The service may not be running.
		if err := runJob(ctx, conn.StopUnitContext, unitName); err != nil {
			slog.Debug("Failed to stop service", "unit", unitName, "error", err)
		}
		if _, err := conn.DisableUnitFilesContext(ctx, []string{unitName}, false); err != nil {
			slog.Debug("Failed to disable service", "unit", unitName, "error", err)
		}
		if err := os.Remove(servicePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := conn.ReloadContext(ctx); err != nil {
			return fmt.Errorf("failed to reload systemd: %w", err)
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Successfully uninstalled wsl-notifyd service.")
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Restart the systemd user service.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		servicePath, err := xdgpath.UserUnitPath(unitName)
		if err != nil {
			return err
		}
		if _, err := os.Stat(servicePath); errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Service not installed, nothing to do.")
			return nil
		}

		ctx := cmd.Context()
		conn, err := sdbus.NewUserConnectionContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to connect to systemd: %w", err)
		}
		defer conn.Close()
		if err := runJob(ctx, conn.RestartUnitContext, unitName); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Successfully reloaded wsl-notifyd service.")
		return nil
	},
}

// unitFile renders the user unit running executable. A non-empty config
// is passed on with --config.
func unitFile(executable, config string) string {
	exec := strconv.Quote(executable) + " serve"
	if config != "" {
		exec += " --config " + strconv.Quote(config)
	}
	return fmt.Sprintf(daemonServiceTemplate, exec)
}

// runJob queues a unit job and waits for systemd to finish it.
func runJob(ctx context.Context, job jobFunc, name string) error {
	done := make(chan string, 1)
	if _, err := job(ctx, name, "replace", done); err != nil {
		return fmt.Errorf("failed to queue job for %s: %w", name, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("job for %s finished with result %q", name, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func init() {
	installCmd.Flags().Bool("print", false, "Print the service configuration to stdout instead of installing it.")
	daemonCmd.AddCommand(installCmd)
	daemonCmd.AddCommand(uninstallCmd)
	daemonCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(daemonCmd)
}
