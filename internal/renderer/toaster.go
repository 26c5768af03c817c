// Package renderer is the remote side of the relay: it receives toast
// requests over RPC, displays them and reports user interaction back.
package renderer

import (
	"time"

	"github.com/mblarsen/wsl-notifyd/internal/content"
)

// EventKind tells activations from dismissals.
type EventKind int

const (
	Activated EventKind = iota + 1
	Dismissed
)

// DismissalReason is why a toast left the screen without activation.
type DismissalReason int

const (
	UserCanceled DismissalReason = iota
	ApplicationHidden
	TimedOut
)

// Event is user or system interaction with a shown toast.
type Event struct {
	Kind EventKind
	// Arguments of the activated action. Empty for a body click.
	Arguments string
	// UserInput maps input ids to the text entered.
	UserInput map[string]string
	Reason    DismissalReason
}

// Toast is one displayed notification.
type Toast struct {
	Tag      string
	Document *content.Document
	// OnEvent receives the toast's events. It is called at most once with
	// an event that removes the toast from the screen.
	OnEvent func(Event)
}

// Toaster displays toasts. Show with the tag of a shown toast replaces it
// without an event. Hide dismisses a shown toast with ApplicationHidden.
type Toaster interface {
	Show(t *Toast) error
	Hide(tag string) error
	// MessageDuration is how long a short toast stays on screen.
	MessageDuration() time.Duration
}

// DurationWatcher is implemented by toasters whose message duration can
// change while running.
type DurationWatcher interface {
	DurationChanges() <-chan time.Duration
}
