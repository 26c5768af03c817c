// Package daemon wires the relay process: the RPC listener the renderer
// connects to, the renderer supervisor and the bus object.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/mblarsen/wsl-notifyd/internal/bus"
	"github.com/mblarsen/wsl-notifyd/internal/config"
	"github.com/mblarsen/wsl-notifyd/internal/content"
	"github.com/mblarsen/wsl-notifyd/internal/pki"
	"github.com/mblarsen/wsl-notifyd/internal/relay"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
	"github.com/mblarsen/wsl-notifyd/internal/supervisor"
)

const stopTimeout = 5 * time.Second

// BusServer is the exported bus object.
type BusServer interface {
	relay.Emitter
	Close() error
}

// ExportFunc publishes svc on the bus.
type ExportFunc func(ctx context.Context, svc bus.Service) (BusServer, error)

// Options configure a Daemon. Nil funcs take the production defaults.
type Options struct {
	Config  *config.Config
	Version string
	// Launcher starts the renderer. Nil runs the configured command.
	Launcher supervisor.Launcher
	Export   ExportFunc
	// Notify reports service state to systemd.
	Notify func(state string) (bool, error)
}

// Daemon is the relay process.
type Daemon struct {
	cfg        *config.Config
	session    *pki.Session
	listener   net.Listener
	grpc       *grpc.Server
	supervisor *supervisor.Supervisor
	relay      *relay.Service
	export     ExportFunc
	notify     func(string) (bool, error)
}

// New generates the TLS session, binds the loopback listener and builds
// the supervisor and relay. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	session, err := pki.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create certificates: %w", err)
	}
	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Server.Listen, err)
	}

	d := &Daemon{
		cfg:      cfg,
		session:  session,
		listener: lis,
		grpc:     grpc.NewServer(grpc.Creds(credentials.NewTLS(session.ServerTLSConfig()))),
		export:   opts.Export,
		notify:   opts.Notify,
	}
	if d.export == nil {
		d.export = func(ctx context.Context, svc bus.Service) (BusServer, error) {
			return bus.Listen(ctx, svc, bus.Options{Address: cfg.Server.BusAddress, CallTimeout: cfg.Server.CallTimeout.Std()})
		}
	}
	if d.notify == nil {
		d.notify = func(state string) (bool, error) { return sddaemon.SdNotify(false, state) }
	}

	launcher := opts.Launcher
	if launcher == nil {
		command, err := RendererCommand(cfg)
		if err != nil {
			_ = lis.Close()
			session.Close()
			return nil, err
		}
		launcher = &supervisor.ExecLauncher{Command: command, Address: lis.Addr().String(), Handoff: d.handoff}
	}

	d.supervisor = supervisor.New(launcher, supervisor.Options{
		IdleTimeout:     cfg.Renderer.IdleTimeout.Std(),
		ShutdownTimeout: cfg.Renderer.ShutdownTimeout.Std(),
		ReadyTimeout:    cfg.Renderer.ReadyTimeout.Std(),
		RestartInterval: cfg.Renderer.RestartInterval.Std(),
		RestartBurst:    cfg.Renderer.RestartBurst,
	})
	d.relay = relay.New(relay.Options{
		Starter:          d.supervisor,
		Builder:          content.NewBuilder(content.NewThemeResolver()),
		Version:          opts.Version,
		DefaultDuration:  cfg.Notifications.DefaultDuration.Std(),
		SignalGapTimeout: cfg.Notifications.SignalGapTimeout.Std(),
	})
	rpc.RegisterNotifierServer(d.grpc, d.relay.RPC())
	return d, nil
}

// RendererExecutable is the Windows build of this program, expected next to
// the Linux executable when no renderer command is configured.
const RendererExecutable = "wsl-notifyd.exe"

// ErrRendererNotFound is returned when no renderer command is configured and
// RendererExecutable is missing.
var ErrRendererNotFound = errors.New("renderer executable not found")

// RendererCommand is the configured renderer command, or the renderer
// subcommand of the Windows build installed next to this executable.
func RendererCommand(cfg *config.Config) ([]string, error) {
	if len(cfg.Renderer.Command) > 0 {
		return cfg.Renderer.Command, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	return defaultRendererCommand(cfg, self)
}

func defaultRendererCommand(cfg *config.Config, self string) ([]string, error) {
	exe := filepath.Join(filepath.Dir(self), RendererExecutable)
	info, err := os.Stat(exe)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s (install the Windows build there or set renderer.command)", ErrRendererNotFound, exe)
	}
	return []string{
		exe, "renderer", "--no-color",
		"--message-duration", cfg.Notifications.DefaultDuration.String(),
		"--spool-linger", cfg.Notifications.SpoolLinger.String(),
	}, nil
}

// handoff writes a freshly issued renderer bundle to a launching child.
func (d *Daemon) handoff(w io.Writer) error {
	b, err := d.session.IssueBundle()
	if err != nil {
		return err
	}
	defer b.Zero()
	return pki.WriteBundle(w, b)
}

// Addr is the address the renderer connects to.
func (d *Daemon) Addr() net.Addr {
	return d.listener.Addr()
}

// Session is the TLS session renderers authenticate against.
func (d *Daemon) Session() *pki.Session {
	return d.session
}

// Supervisor exposes the renderer supervisor.
func (d *Daemon) Supervisor() *supervisor.Supervisor {
	return d.supervisor
}

// Run serves until ctx is done or the renderer channel fails, then shuts
// everything down in order.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.session.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.grpc.Serve(d.listener); err != nil {
			return fmt.Errorf("renderer channel failed: %w", err)
		}
		return nil
	})
	slog.Info("Serving renderer channel", "address", d.listener.Addr())

	busServer, err := d.export(ctx, d.relay)
	if err != nil {
		d.stop()
		_ = g.Wait()
		return err
	}
	d.relay.SetEmitter(busServer)
	d.sdNotify(sddaemon.SdNotifyReady)
	slog.Info("Daemon startup successful.")

	<-gctx.Done()
	slog.Info("Shutting down")
	d.sdNotify(sddaemon.SdNotifyStopping)
	d.stop()
	if err := busServer.Close(); err != nil {
		slog.Debug("Failed to close bus connection", "error", err)
	}
	return g.Wait()
}

// stop closes the supervisor, the relay and the RPC server. The renderer
// gets its graceful shutdown before the channel goes away.
func (d *Daemon) stop() {
	closeCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Renderer.ShutdownTimeout.Std()+stopTimeout)
	defer cancel()
	if err := d.supervisor.Close(closeCtx); err != nil {
		slog.Warn("Renderer did not stop in time", "error", err)
	}
	d.relay.Close()

	stopped := make(chan struct{})
	go func() {
		d.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(stopTimeout):
		slog.Warn("Forcing renderer channel to stop")
		d.grpc.Stop()
	}
}

func (d *Daemon) sdNotify(state string) {
	sent, err := d.notify(state)
	if err != nil {
		slog.Warn("Failed to notify systemd", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("Notified systemd", "state", state)
	}
}
