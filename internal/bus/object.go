package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/mblarsen/wsl-notifyd/internal/content"
)

// object is the exported value. Every exported method becomes a bus
// method, so it carries nothing but the interface's four.
type object struct {
	base    context.Context
	svc     Service
	timeout time.Duration
}

func newObject(ctx context.Context, svc Service, timeout time.Duration) *object {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &object{base: ctx, svc: svc, timeout: timeout}
}

func (o *object) GetCapabilities() ([]string, *dbus.Error) {
	return o.svc.GetCapabilities(), nil
}

func (o *object) Notify(appName string, replacesID uint32, appIcon, summary, body string, actions []string, hints map[string]dbus.Variant, expireTimeout int32) (id uint32, derr *dbus.Error) {
	// godbus does not recover panics in method calls.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Notify panicked", "app", appName, "panic", r)
			id, derr = 0, dbus.MakeFailedError(fmt.Errorf("notify: %v", r))
		}
	}()
	ctx, cancel := context.WithTimeout(o.base, o.timeout)
	defer cancel()
	id, err := o.svc.Notify(ctx, replacesID, content.Request{
		AppName:       appName,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         Hints(hints),
		ExpireTimeout: expireTimeout,
	})
	if err != nil {
		slog.Error("Notify failed", "app", appName, "replaces", replacesID, "error", err)
		return 0, dbus.MakeFailedError(err)
	}
	return id, nil
}

func (o *object) CloseNotification(id uint32) *dbus.Error {
	ctx, cancel := context.WithTimeout(o.base, o.timeout)
	defer cancel()
	if err := o.svc.CloseNotification(ctx, id); err != nil {
		slog.Error("CloseNotification failed", "id", id, "error", err)
		return dbus.MakeFailedError(err)
	}
	return nil
}

func (o *object) GetServerInformation() (string, string, string, string, *dbus.Error) {
	name, vendor, version, spec := o.svc.GetServerInformation()
	return name, vendor, version, spec, nil
}
