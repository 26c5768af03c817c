// Package bus exports the relay as the freedesktop notification service on
// the session bus and emits its signals.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/mblarsen/wsl-notifyd/internal/content"
)

const (
	Name      = "org.freedesktop.Notifications"
	Path      = dbus.ObjectPath("/org/freedesktop/Notifications")
	Interface = "org.freedesktop.Notifications"

	defaultCallTimeout = 25 * time.Second
)

// ErrNameTaken is returned when another process already owns the
// notification service name.
var ErrNameTaken = errors.New("notification service name is already owned")

const introspection = `
<node>
	<interface name="` + Interface + `">
		<method name="GetCapabilities">
			<arg direction="out" name="capabilities" type="as"/>
		</method>
		<method name="Notify">
			<arg direction="in" name="app_name" type="s"/>
			<arg direction="in" name="replaces_id" type="u"/>
			<arg direction="in" name="app_icon" type="s"/>
			<arg direction="in" name="summary" type="s"/>
			<arg direction="in" name="body" type="s"/>
			<arg direction="in" name="actions" type="as"/>
			<arg direction="in" name="hints" type="a{sv}"/>
			<arg direction="in" name="expire_timeout" type="i"/>
			<arg direction="out" name="id" type="u"/>
		</method>
		<method name="CloseNotification">
			<arg direction="in" name="id" type="u"/>
		</method>
		<method name="GetServerInformation">
			<arg direction="out" name="name" type="s"/>
			<arg direction="out" name="vendor" type="s"/>
			<arg direction="out" name="version" type="s"/>
			<arg direction="out" name="spec_version" type="s"/>
		</method>
		<signal name="NotificationClosed">
			<arg name="id" type="u"/>
			<arg name="reason" type="u"/>
		</signal>
		<signal name="ActionInvoked">
			<arg name="id" type="u"/>
			<arg name="action_key" type="s"/>
		</signal>
		<signal name="NotificationReplied">
			<arg name="id" type="u"/>
			<arg name="text" type="s"/>
		</signal>
	</interface>` + introspect.IntrospectDataString + `</node>`

// Service is the notification logic behind the bus object.
type Service interface {
	GetCapabilities() []string
	Notify(ctx context.Context, replacesID uint32, req content.Request) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
	GetServerInformation() (name, vendor, version, specVersion string)
}

// Options configure Listen.
type Options struct {
	// Address of the bus. Empty selects the session bus.
	Address string
	// CallTimeout bounds one method call waiting on the service.
	CallTimeout time.Duration
}

// Server owns the bus connection and the exported object.
type Server struct {
	conn *dbus.Conn
	obj  *object
}

// Connect opens the bus at address, or the session bus when empty.
func Connect(address string) (*dbus.Conn, error) {
	if address == "" {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return conn, nil
	}
	conn, err := dbus.Connect(address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus %s: %w", address, err)
	}
	return conn, nil
}

// Listen connects to the bus and exports svc. Method calls run under
// contexts derived from ctx.
func Listen(ctx context.Context, svc Service, opts Options) (*Server, error) {
	conn, err := Connect(opts.Address)
	if err != nil {
		return nil, err
	}
	s, err := Export(ctx, conn, svc, opts.CallTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Export publishes svc on conn and takes the well-known name.
func Export(ctx context.Context, conn *dbus.Conn, svc Service, callTimeout time.Duration) (*Server, error) {
	obj := newObject(ctx, svc, callTimeout)
	if err := conn.Export(obj, Path, Interface); err != nil {
		return nil, fmt.Errorf("failed to export notification object: %w", err)
	}
	if err := conn.Export(introspect.Introspectable(introspection), Path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}
	reply, err := conn.RequestName(Name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", Name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, ErrNameTaken
	}
	slog.Info("Exported notification service", "name", Name, "path", Path)
	return &Server{conn: conn, obj: obj}, nil
}

// NotificationClosed emits the NotificationClosed signal.
func (s *Server) NotificationClosed(id, reason uint32) error {
	return s.emit("NotificationClosed", id, reason)
}

// ActionInvoked emits the ActionInvoked signal.
func (s *Server) ActionInvoked(id uint32, actionKey string) error {
	return s.emit("ActionInvoked", id, actionKey)
}

// NotificationReplied emits the NotificationReplied signal.
func (s *Server) NotificationReplied(id uint32, text string) error {
	return s.emit("NotificationReplied", id, text)
}

func (s *Server) emit(signal string, values ...any) error {
	slog.Debug("Emitting signal", "signal", signal, "values", values)
	if err := s.conn.Emit(Path, Interface+"."+signal, values...); err != nil {
		return fmt.Errorf("failed to emit %s: %w", signal, err)
	}
	return nil
}

// Close gives up the name and closes the connection.
func (s *Server) Close() error {
	if _, err := s.conn.ReleaseName(Name); err != nil {
		slog.Debug("Failed to release bus name", "error", err)
	}
	return s.conn.Close()
}
