package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mblarsen/wsl-notifyd/internal/bus"
)

var urgencies = map[string]uint8{"low": 0, "normal": 1, "critical": 2}

var sendCmd = &cobra.Command{
	Use:   "send <summary> [body]",
	Short: "Send a notification through the session bus.",
	Long: `Send a notification to whichever service owns
org.freedesktop.Notifications and print its id.`,
	Example: `  wsl-notifyd send "Build finished" "All tests passed"
  wsl-notifyd send --urgency critical --action default=Open "Disk full"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := messageFromFlags(cmd, args)
		if err != nil {
			return err
		}
		client, err := bus.Dial(cfg.Server.BusAddress)
		if err != nil {
			return handleClientError(err)
		}
		defer func() { _ = client.Close() }()

		id, err := client.Notify(cmd.Context(), m)
		if err != nil {
			return handleClientError(err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func messageFromFlags(cmd *cobra.Command, args []string) (bus.Message, error) {
	appName, _ := cmd.Flags().GetString("app-name")
	icon, _ := cmd.Flags().GetString("icon")
	urgency, _ := cmd.Flags().GetString("urgency")
	expire, _ := cmd.Flags().GetDuration("expire")
	replaces, _ := cmd.Flags().GetUint32("replaces")
	actionFlags, _ := cmd.Flags().GetStringArray("action")

	m := bus.Message{
		AppName:       appName,
		ReplacesID:    replaces,
		AppIcon:       icon,
		Summary:       args[0],
		ExpireTimeout: -1,
		Hints:         map[string]any{},
	}
	if len(args) > 1 {
		m.Body = args[1]
	}
	if cmd.Flags().Changed("expire") {
		m.ExpireTimeout = int32(expire / time.Millisecond)
	}
	u, ok := urgencies[strings.ToLower(urgency)]
	if !ok {
		return bus.Message{}, fmt.Errorf("invalid urgency %q: want low, normal or critical", urgency)
	}
	m.Hints["urgency"] = u
	actions, err := parseActions(actionFlags)
	if err != nil {
		return bus.Message{}, err
	}
	m.Actions = actions
	return m, nil
}

// parseActions turns "id=label" flags into the flat key/label list of the
// Notify call. A bare id is its own label.
func parseActions(flags []string) ([]string, error) {
	actions := make([]string, 0, 2*len(flags))
	for _, f := range flags {
		id, label, found := strings.Cut(f, "=")
		if id == "" {
			return nil, fmt.Errorf("invalid action %q: missing id", f)
		}
		if !found {
			label = id
		}
		actions = append(actions, id, label)
	}
	return actions, nil
}

func addSendFlags(c *cobra.Command) {
	c.Flags().String("app-name", appName, "Application name shown as the toast attribution.")
	c.Flags().String("icon", "", "Icon name or file path.")
	c.Flags().String("urgency", "normal", "Urgency: low, normal or critical.")
	c.Flags().Duration("expire", 0, "How long the toast should stay (default: server decides).")
	c.Flags().Uint32("replaces", 0, "Id of a notification to replace.")
	c.Flags().StringArray("action", nil, "Action as id=label. Repeatable; the id \"default\" is a click on the toast.")
}

func init() {
	addSendFlags(sendCmd)
	rootCmd.AddCommand(sendCmd)
}
