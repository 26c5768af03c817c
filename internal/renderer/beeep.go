package renderer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
	"github.com/mblarsen/wsl-notifyd/internal/content"
)

// longDuration is how long a toast with duration "long" stays shown.
const longDuration = 25 * time.Second

type beeepFunc func(title, message string, icon any) error

// BeeepToaster shows toasts through the platform notifier of beeep. Beeep
// cannot observe interaction, so every toast is reported as timed out
// once its duration has passed.
type BeeepToaster struct {
	duration time.Duration
	clock    clock.Clock
	notify   beeepFunc
	alert    beeepFunc

	mu    sync.Mutex
	shown map[string]*beeepToast
}

type beeepToast struct {
	toast *Toast
	timer *clock.Timer
}

// NewBeeepToaster sets the application name beeep reports and returns a
// toaster whose short toasts last duration.
func NewBeeepToaster(appName string, duration time.Duration) *BeeepToaster {
	if appName != "" {
		beeep.AppName = appName
	}
	return &BeeepToaster{
		duration: duration,
		clock:    clock.Real(),
		notify:   beeep.Notify,
		alert:    beeep.Alert,
		shown:    make(map[string]*beeepToast),
	}
}

func (b *BeeepToaster) MessageDuration() time.Duration {
	return b.duration
}

func (b *BeeepToaster) Show(t *Toast) error {
	doc := t.Document
	send := b.notify
	if doc.Scenario == "urgent" {
		send = b.alert
	}
	if err := send(doc.Title(), message(doc), icon(doc)); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.shown[t.Tag]; ok {
		old.timer.Stop()
	}
	entry := &beeepToast{toast: t}
	entry.timer = b.clock.AfterFunc(b.lifetime(doc), func() { b.dismiss(t.Tag, entry, TimedOut) })
	b.shown[t.Tag] = entry
	return nil
}

// Hide forgets the toast. The platform notification itself stays until
// the notifier removes it.
func (b *BeeepToaster) Hide(tag string) error {
	b.mu.Lock()
	entry, ok := b.shown[tag]
	b.mu.Unlock()
	if ok {
		b.dismiss(tag, entry, ApplicationHidden)
	}
	return nil
}

func (b *BeeepToaster) dismiss(tag string, entry *beeepToast, reason DismissalReason) {
	b.mu.Lock()
	if b.shown[tag] != entry {
		b.mu.Unlock()
		return
	}
	delete(b.shown, tag)
	entry.timer.Stop()
	b.mu.Unlock()

	slog.Debug("Toast dismissed", "tag", tag, "reason", reason)
	if entry.toast.OnEvent != nil {
		entry.toast.OnEvent(Event{Kind: Dismissed, Reason: reason})
	}
}

func (b *BeeepToaster) lifetime(doc *content.Document) time.Duration {
	if doc.Duration == "long" || b.duration <= 0 {
		return longDuration
	}
	return b.duration
}

func message(doc *content.Document) string {
	if body := doc.Body(); body != "" {
		return body
	}
	return doc.Attribution()
}

// icon prefers the notification image over the app logo.
func icon(doc *content.Document) any {
	var logo string
	for _, img := range doc.Visual.Binding.Images {
		if img.Placement == content.PlacementAppLogo {
			if logo == "" {
				logo = filePath(img.Src)
			}
			continue
		}
		return filePath(img.Src)
	}
	return logo
}
