// Package rpc defines the loopback RPC service between the relay and the
// renderer. Messages are plain Go structs carried by a CBOR gRPC codec.
package rpc

import (
	"errors"
	"time"
)

// Status is the application outcome carried inside every reply.
type Status struct {
	Success bool   `cbor:"success"`
	Error   string `cbor:"error,omitempty"`
}

// OK is a successful status.
func OK() Status {
	return Status{Success: true}
}

// Failed converts err into a failed status.
func Failed(err error) Status {
	return Status{Error: err.Error()}
}

// Err returns nil for a successful status and a *RemoteError otherwise.
func (s Status) Err() error {
	if s.Success {
		return nil
	}
	msg := s.Error
	if msg == "" {
		msg = "unknown error"
	}
	return &RemoteError{Message: msg}
}

// RemoteError is a failure reported by the peer in a reply status.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "renderer: " + e.Message
}

// IsRemote reports whether err carries a peer-reported failure.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// NotifyCall asks the renderer to show or replace a toast.
type NotifyCall struct {
	Serial      uint32            `cbor:"serial"`
	ID          uint32            `cbor:"id"`
	Document    string            `cbor:"document"`
	Attachments map[string][]byte `cbor:"attachments,omitempty"`
}

type NotifyResult struct {
	Serial uint32 `cbor:"serial"`
	ID     uint32 `cbor:"id"`
	Status Status `cbor:"status"`
}

// CloseCall asks the renderer to hide a toast.
type CloseCall struct {
	Serial uint32 `cbor:"serial"`
	ID     uint32 `cbor:"id"`
}

type CloseResult struct {
	Serial uint32 `cbor:"serial"`
	Status Status `cbor:"status"`
}

// Every signal carries the renderer's session nonce and a sequence number
// drawn from one counter shared by all signal streams.

type ActionInvokedSignal struct {
	Session   uint64 `cbor:"session"`
	Seq       uint64 `cbor:"seq"`
	ID        uint32 `cbor:"id"`
	ActionKey string `cbor:"action_key"`
}

type NotificationClosedSignal struct {
	Session uint64 `cbor:"session"`
	Seq     uint64 `cbor:"seq"`
	ID      uint32 `cbor:"id"`
	Reason  uint32 `cbor:"reason"`
}

type NotificationRepliedSignal struct {
	Session uint64 `cbor:"session"`
	Seq     uint64 `cbor:"seq"`
	ID      uint32 `cbor:"id"`
	Text    string `cbor:"text"`
}

type ShutdownRequest struct{}

// ShutdownOrder tells the renderer to exit.
type ShutdownOrder struct {
	Reason string `cbor:"reason,omitempty"`
}

// MessageDuration is how long the renderer keeps a short toast on screen.
type MessageDuration struct {
	Duration time.Duration `cbor:"duration"`
}

type Empty struct{}

// Close reasons of the NotificationClosed signal.
const (
	ReasonExpired   uint32 = 1
	ReasonDismissed uint32 = 2
	ReasonClosed    uint32 = 3
	ReasonUndefined uint32 = 4
)
