// Package relay implements the desktop notification operations on top of
// the renderer channel. It is both the target of the bus object and the
// RPC server the renderer connects to.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
	"github.com/mblarsen/wsl-notifyd/internal/content"
	"github.com/mblarsen/wsl-notifyd/internal/correlate"
	"github.com/mblarsen/wsl-notifyd/internal/registry"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
)

const (
	ServerName    = "wsl-notifyd"
	ServerVendor  = "WSL"
	SpecVersion   = "1.2"
	defaultGap    = 2 * time.Second
	defaultExpiry = 5 * time.Second
)

var capabilities = []string{
	"action-icons",
	"actions",
	"body",
	"icon-static",
	"persistence",
	"sound",
	"inline-reply",
}

// Starter is the part of the supervisor the relay drives.
type Starter interface {
	RequestStart(ctx context.Context, id uint32) error
	NotificationHandled(id uint32)
	MarkReady()
	SubscribeShutdown() (<-chan struct{}, func())
}

// Emitter publishes the notification signals on the bus.
type Emitter interface {
	NotificationClosed(id, reason uint32) error
	ActionInvoked(id uint32, actionKey string) error
	NotificationReplied(id uint32, text string) error
}

// Options configure a Service.
type Options struct {
	Starter          Starter
	Builder          *content.Builder
	Registry         *registry.Registry
	Version          string
	DefaultDuration  time.Duration
	SignalGapTimeout time.Duration
	Clock            clock.Clock
}

// Service is the relay.
type Service struct {
	starter  Starter
	builder  *content.Builder
	registry *registry.Registry
	version  string

	notify *correlate.Channel[*rpc.NotifyCall, *rpc.NotifyResult]
	close  *correlate.Channel[*rpc.CloseCall, *rpc.CloseResult]
	seq    *sequencer

	duration atomic.Int64

	emitterMu sync.RWMutex
	emitter   Emitter

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a relay. The emitter is attached later with SetEmitter once
// the bus object exists.
func New(opts Options) *Service {
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	if opts.Builder == nil {
		opts.Builder = content.NewBuilder(nil)
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = defaultExpiry
	}
	if opts.SignalGapTimeout <= 0 {
		opts.SignalGapTimeout = defaultGap
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	s := &Service{
		starter:  opts.Starter,
		builder:  opts.Builder,
		registry: opts.Registry,
		version:  opts.Version,
		notify: correlate.NewChannel[*rpc.NotifyCall]("notify",
			func(r *rpc.NotifyResult) uint32 { return r.Serial }),
		close: correlate.NewChannel[*rpc.CloseCall]("close",
			func(r *rpc.CloseResult) uint32 { return r.Serial }),
		seq:  newSequencer(opts.Clock, opts.SignalGapTimeout),
		done: make(chan struct{}),
	}
	s.duration.Store(int64(opts.DefaultDuration))
	return s
}

// SetEmitter attaches the bus signal sink.
func (s *Service) SetEmitter(e Emitter) {
	s.emitterMu.Lock()
	defer s.emitterMu.Unlock()
	s.emitter = e
}

func (s *Service) getEmitter() Emitter {
	s.emitterMu.RLock()
	defer s.emitterMu.RUnlock()
	return s.emitter
}

// MessageDuration is the renderer's current short-toast duration.
func (s *Service) MessageDuration() time.Duration {
	return time.Duration(s.duration.Load())
}

// GetCapabilities lists the optional features the relay supports.
func (s *Service) GetCapabilities() []string {
	return append([]string(nil), capabilities...)
}

// GetServerInformation returns name, vendor, version and spec version.
func (s *Service) GetServerInformation() (name, vendor, version, specVersion string) {
	return ServerName, ServerVendor, s.version, SpecVersion
}

// Notify shows or replaces a notification and returns its id. It starts
// the renderer when needed and blocks until the renderer answered. A
// displayed notification keeps the renderer alive until it is closed.
func (s *Service) Notify(ctx context.Context, replacesID uint32, req content.Request) (uint32, error) {
	id := s.registry.Assign(replacesID)
	doc, attachments := s.builder.Build(req, s.MessageDuration())
	xml, err := doc.Marshal()
	if err != nil {
		return 0, err
	}
	slog.Debug("Notify", "id", id, "app", req.AppName, "summary", req.Summary, "attachments", len(attachments))

	if err := s.starter.RequestStart(ctx, id); err != nil {
		s.starter.NotificationHandled(id)
		return 0, fmt.Errorf("failed to start renderer: %w", err)
	}
	res, err := s.notify.Call(ctx, func(serial uint32) *rpc.NotifyCall {
		return &rpc.NotifyCall{Serial: serial, ID: id, Document: xml, Attachments: attachments}
	})
	if err == nil {
		err = res.Status.Err()
	}
	if err != nil {
		s.starter.NotificationHandled(id)
		return 0, fmt.Errorf("notification %d: %w", id, err)
	}
	return id, nil
}

// CloseNotification hides a notification. It starts the renderer when
// needed so the request reaches it.
func (s *Service) CloseNotification(ctx context.Context, id uint32) error {
	defer s.starter.NotificationHandled(id)
	if err := s.starter.RequestStart(ctx, id); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	res, err := s.close.Call(ctx, func(serial uint32) *rpc.CloseCall {
		return &rpc.CloseCall{Serial: serial, ID: id}
	})
	if err == nil {
		err = res.Status.Err()
	}
	if err != nil {
		return fmt.Errorf("close notification %d: %w", id, err)
	}
	return nil
}

// Close releases every caller waiting on the renderer.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.notify.Close(nil)
		s.close.Close(nil)
		s.seq.close()
		slog.Info("Relay closed", "last_id", s.registry.Current())
	})
}

// checkReady reports readiness to the supervisor once both duplex streams
// are attached.
func (s *Service) checkReady() {
	if s.notify.Gate().Count() > 0 && s.close.Gate().Count() > 0 {
		s.starter.MarkReady()
	}
}

func (s *Service) emitClosed(id, reason uint32) {
	s.starter.NotificationHandled(id)
	if e := s.getEmitter(); e != nil {
		if err := e.NotificationClosed(id, reason); err != nil {
			slog.Warn("Failed to emit NotificationClosed", "id", id, "error", err)
		}
	}
}

func (s *Service) emitAction(id uint32, key string) {
	if e := s.getEmitter(); e != nil {
		if err := e.ActionInvoked(id, key); err != nil {
			slog.Warn("Failed to emit ActionInvoked", "id", id, "error", err)
		}
	}
}

func (s *Service) emitReplied(id uint32, text string) {
	if e := s.getEmitter(); e != nil {
		if err := e.NotificationReplied(id, text); err != nil {
			slog.Warn("Failed to emit NotificationReplied", "id", id, "error", err)
		}
	}
}
