package bus

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ErrNotRunning is returned by the client when no process owns the
// notification service name.
var ErrNotRunning = errors.New("notification service is not running")

// ServerInfo is the reply of GetServerInformation.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// Message is a notification sent through the bus.
type Message struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string
	Hints         map[string]any
	ExpireTimeout int32
}

// Client calls the notification service over the bus.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// Dial connects to the bus at address, or the session bus when empty.
func Dial(address string) (*Client, error) {
	conn, err := Connect(address)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, obj: conn.Object(Name, Path)}, nil
}

// Running reports whether a process owns the service name.
func (c *Client) Running(ctx context.Context) (bool, error) {
	var owned bool
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, Name).Store(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to query name owner: %w", err)
	}
	return owned, nil
}

// ServerInformation returns the service's identification.
func (c *Client) ServerInformation(ctx context.Context) (ServerInfo, error) {
	var info ServerInfo
	err := c.call(ctx, "GetServerInformation").Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	return info, err
}

// Capabilities returns the optional features the service supports.
func (c *Client) Capabilities(ctx context.Context) ([]string, error) {
	var caps []string
	err := c.call(ctx, "GetCapabilities").Store(&caps)
	return caps, err
}

// Notify shows m and returns its id.
func (c *Client) Notify(ctx context.Context, m Message) (uint32, error) {
	hints := make(map[string]dbus.Variant, len(m.Hints))
	for k, v := range m.Hints {
		hints[k] = dbus.MakeVariant(v)
	}
	actions := m.Actions
	if actions == nil {
		actions = []string{}
	}
	var id uint32
	err := c.call(ctx, "Notify", m.AppName, m.ReplacesID, m.AppIcon, m.Summary, m.Body, actions, hints, m.ExpireTimeout).Store(&id)
	return id, err
}

// CloseNotification hides notification id.
func (c *Client) CloseNotification(ctx context.Context, id uint32) error {
	return c.call(ctx, "CloseNotification", id).Err
}

func (c *Client) call(ctx context.Context, method string, args ...any) *dbus.Call {
	call := c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...)
	if call.Err != nil {
		var de dbus.Error
		if errors.As(call.Err, &de) && de.Name == "org.freedesktop.DBus.Error.ServiceUnknown" {
			call.Err = ErrNotRunning
		} else {
			call.Err = fmt.Errorf("%s: %w", method, call.Err)
		}
	}
	return call
}

// Close closes the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
