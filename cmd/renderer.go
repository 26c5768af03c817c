package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
	"github.com/mblarsen/wsl-notifyd/internal/pki"
	"github.com/mblarsen/wsl-notifyd/internal/renderer"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
	"github.com/mblarsen/wsl-notifyd/internal/xdgpath"
)

const appName = "wsl-notifyd"

// errRendererOnLinux is returned by the renderer on Linux, where beeep
// shows toasts through the bus service the relay owns.
var errRendererOnLinux = errors.New("the renderer must run on Windows: install wsl-notifyd.exe next to wsl-notifyd or set renderer.command")

var rendererCmd = &cobra.Command{
	Use:   "renderer <address>",
	Short: "Show relayed notifications as toasts.",
	Long: `Connect to the relay at address and show its notifications. The
certificate bundle is read from stdin. The relay starts this command itself.`,
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if runtime.GOOS == "linux" {
			return errRendererOnLinux
		}
		duration, _ := cmd.Flags().GetDuration("message-duration")
		linger, _ := cmd.Flags().GetDuration("spool-linger")
		address := args[0]

		bundle, err := pki.ReadBundle(cmd.InOrStdin())
		if err != nil {
			return err
		}
		tlsConfig, err := bundle.ClientTLSConfig()
		bundle.Zero()
		if err != nil {
			return err
		}
		conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
		if err != nil {
			return &rpc.ConnectionError{Address: address, Err: err}
		}
		defer func() { _ = conn.Close() }()

		dir, err := xdgpath.RuntimePath("spool-" + strconv.Itoa(os.Getpid()))
		if err != nil {
			return fmt.Errorf("failed to get spool path: %w", err)
		}
		spool, err := renderer.NewSpool(dir, linger, clock.Real())
		if err != nil {
			return err
		}
		defer func() {
			if err := spool.Close(); err != nil {
				slog.Warn("Failed to remove spool", "dir", dir, "error", err)
			}
		}()

		slog.Info("Renderer connecting", "address", address, "message_duration", duration)
		client := renderer.New(conn, renderer.Options{
			Toaster: renderer.NewBeeepToaster(appName, duration),
			Spool:   spool,
		})
		err = client.Run(cmd.Context())
		if unreachable(err) {
			return &rpc.ConnectionError{Address: address, Err: err}
		}
		return err
	},
}

func unreachable(err error) bool {
	if err == nil {
		return false
	}
	var connErr *rpc.ConnectionError
	if errors.As(err, &connErr) {
		return false
	}
	return status.Code(err) == codes.Unavailable
}

func init() {
	rendererCmd.Flags().Duration("message-duration", 5*time.Second, "How long a toast stays on screen.")
	rendererCmd.Flags().Duration("spool-linger", time.Second, "Delay before spooled images of a dismissed toast are deleted.")
	rootCmd.AddCommand(rendererCmd)
}
