package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mblarsen/wsl-notifyd/internal/bus"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running notification service.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := bus.Dial(cfg.Server.BusAddress)
		if err != nil {
			return handleClientError(err)
		}
		defer func() { _ = client.Close() }()

		ctx := cmd.Context()
		running, err := client.Running(ctx)
		if err != nil {
			return handleClientError(err)
		}
		if !running {
			return handleClientError(bus.ErrNotRunning)
		}
		info, err := client.ServerInformation(ctx)
		if err != nil {
			return handleClientError(err)
		}
		caps, err := client.Capabilities(ctx)
		if err != nil {
			return handleClientError(err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Server:\t%s\n", info.Name)
		_, _ = fmt.Fprintf(w, "Vendor:\t%s\n", info.Vendor)
		_, _ = fmt.Fprintf(w, "Version:\t%s\n", info.Version)
		_, _ = fmt.Fprintf(w, "Protocol:\t%s\n", info.SpecVersion)
		_, _ = fmt.Fprintf(w, "Capabilities:\t%s\n", strings.Join(caps, ", "))
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
