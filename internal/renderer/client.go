package renderer

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/mblarsen/wsl-notifyd/internal/content"
	"github.com/mblarsen/wsl-notifyd/internal/correlate"
	"github.com/mblarsen/wsl-notifyd/internal/rpc"
)

const signalBuffer = 64

// Options configure a Client.
type Options struct {
	Toaster Toaster
	Spool   *Spool
	// Session identifies this process's signal sequence. Zero picks a
	// random nonce.
	Session uint64
}

// Client serves the relay's calls and forwards toast events as signals.
type Client struct {
	rpc     rpc.NotifierClient
	toaster Toaster
	spool   *Spool
	history *History

	session uint64
	seq     atomic.Uint64
	eventMu sync.Mutex

	actions *correlate.Pump[*rpc.ActionInvokedSignal]
	closed  *correlate.Pump[*rpc.NotificationClosedSignal]
	replied *correlate.Pump[*rpc.NotificationRepliedSignal]
}

// New creates a client on conn.
func New(conn grpc.ClientConnInterface, opts Options) *Client {
	session := opts.Session
	for session == 0 {
		var b [8]byte
		_, _ = rand.Read(b[:])
		session = binary.BigEndian.Uint64(b[:])
	}
	return &Client{
		rpc:     rpc.NewNotifierClient(conn),
		toaster: opts.Toaster,
		spool:   opts.Spool,
		history: NewHistory(),
		session: session,
		actions: correlate.NewPump[*rpc.ActionInvokedSignal](signalBuffer),
		closed:  correlate.NewPump[*rpc.NotificationClosedSignal](signalBuffer),
		replied: correlate.NewPump[*rpc.NotificationRepliedSignal](signalBuffer),
	}
}

// History exposes the toasts currently shown.
func (c *Client) History() *History {
	return c.history
}

// Run opens every stream and serves until the relay orders a shutdown, the
// shutdown stream ends, ctx is done or a stream fails.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.actions.Close()
	defer c.closed.Close()
	defer c.replied.Close()

	shutdown, err := c.rpc.Shutdown(ctx, &rpc.ShutdownRequest{})
	if err != nil {
		return fmt.Errorf("failed to open shutdown stream: %w", err)
	}
	replied, err := c.rpc.NotificationReplied(ctx)
	if err != nil {
		return fmt.Errorf("failed to open reply stream: %w", err)
	}
	actions, err := c.rpc.ActionInvoked(ctx)
	if err != nil {
		return fmt.Errorf("failed to open action stream: %w", err)
	}
	closed, err := c.rpc.NotificationClosed(ctx)
	if err != nil {
		return fmt.Errorf("failed to open closed stream: %w", err)
	}
	closeCalls, err := c.rpc.CloseNotification(ctx)
	if err != nil {
		return fmt.Errorf("failed to open close stream: %w", err)
	}
	notifyCalls, err := c.rpc.Notify(ctx)
	if err != nil {
		return fmt.Errorf("failed to open notify stream: %w", err)
	}
	slog.Info("Connected to relay", "session", c.session)

	g, gctx := errgroup.WithContext(ctx)
	context.AfterFunc(gctx, cancel)
	g.Go(func() error {
		order, err := shutdown.Recv()
		switch {
		case err == nil:
			slog.Info("Relay requested shutdown", "reason", order.Reason)
		case gctx.Err() == nil:
			slog.Info("Shutdown stream ended", "error", err)
		}
		cancel()
		return nil
	})
	g.Go(func() error { return ended(gctx, c.replied.Run(gctx, replied.Send)) })
	g.Go(func() error { return ended(gctx, c.actions.Run(gctx, actions.Send)) })
	g.Go(func() error { return ended(gctx, c.closed.Run(gctx, closed.Send)) })
	g.Go(func() error {
		return ended(gctx, serveCalls(gctx, closeCalls.Recv, closeCalls.Send, c.closeNotification))
	})
	g.Go(func() error {
		return ended(gctx, serveCalls(gctx, notifyCalls.Recv, notifyCalls.Send, c.notify))
	})
	g.Go(func() error { return c.reportDuration(gctx) })
	return g.Wait()
}

// ended drops errors caused by the run being cancelled.
func ended(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// serveCalls answers every call read from a duplex stream on its own
// goroutine. Sends are serialized.
func serveCalls[Call, Result any](ctx context.Context, recv func() (*Call, error), send func(*Result) error, handle func(*Call) *Result) error {
	var (
		sendMu sync.Mutex
		wg     sync.WaitGroup
	)
	defer wg.Wait()
	return correlate.Drain(ctx, recv, func(call *Call) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := handle(call)
			sendMu.Lock()
			defer sendMu.Unlock()
			if err := send(res); err != nil {
				slog.Warn("Failed to send reply", "error", err)
			}
		}()
	})
}

func (c *Client) reportDuration(ctx context.Context) error {
	report := func(d time.Duration) error {
		if _, err := c.rpc.MessageDurationChanged(ctx, &rpc.MessageDuration{Duration: d}); err != nil {
			return ended(ctx, fmt.Errorf("failed to report message duration: %w", err))
		}
		slog.Debug("Reported message duration", "duration", d)
		return nil
	}
	if err := report(c.toaster.MessageDuration()); err != nil {
		return err
	}
	w, ok := c.toaster.(DurationWatcher)
	if !ok {
		return nil
	}
	changes := w.DurationChanges()
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-changes:
			if !ok {
				return nil
			}
			if err := report(d); err != nil {
				return err
			}
		}
	}
}

func tag(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (c *Client) notify(call *rpc.NotifyCall) *rpc.NotifyResult {
	res := &rpc.NotifyResult{Serial: call.Serial, ID: call.ID, Status: rpc.OK()}
	if err := c.show(call); err != nil {
		slog.Warn("Failed to show notification", "id", call.ID, "error", err)
		res.Status = rpc.Failed(err)
	}
	return res
}

func (c *Client) show(call *rpc.NotifyCall) error {
	doc, err := content.ParseDocument(call.Document)
	if err != nil {
		return err
	}
	var paths map[string]string
	if c.spool != nil {
		paths, err = c.spool.Store(call.Attachments)
		if err != nil {
			slog.Warn("Failed to spool attachments", "id", call.ID, "error", err)
		}
		defer c.spool.Release(paths)
	}
	localize(doc, paths)

	t := &Toast{Tag: tag(call.ID), Document: doc}
	t.OnEvent = func(ev Event) { c.handleEvent(call.ID, t, ev) }
	c.history.Put(t)
	if err := c.toaster.Show(t); err != nil {
		c.history.Remove(t)
		return fmt.Errorf("failed to show toast: %w", err)
	}
	slog.Info("Showing notification", "id", call.ID, "title", doc.Title())
	return nil
}

func (c *Client) closeNotification(call *rpc.CloseCall) *rpc.CloseResult {
	res := &rpc.CloseResult{Serial: call.Serial, Status: rpc.OK()}
	if _, ok := c.history.Get(tag(call.ID)); !ok {
		slog.Debug("Close for unknown notification", "id", call.ID)
		return res
	}
	slog.Info("Closing notification", "id", call.ID)
	if err := c.toaster.Hide(tag(call.ID)); err != nil {
		res.Status = rpc.Failed(fmt.Errorf("failed to hide toast %d: %w", call.ID, err))
	}
	return res
}

// handleEvent maps a toast event to signals. An activation emits the reply,
// the action and the close in that order under one lock, so their sequence
// numbers follow each other.
func (c *Client) handleEvent(id uint32, t *Toast, ev Event) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()
	c.history.Remove(t)

	switch ev.Kind {
	case Activated:
		key := ev.Arguments
		if key == "" {
			key = content.DefaultActionID
		}
		slog.Info("Notification activated", "id", id, "action", key)
		if key == content.InlineReplyID {
			if text, ok := ev.UserInput[content.InlineReplyID]; ok {
				c.replied.Push(&rpc.NotificationRepliedSignal{Session: c.session, Seq: c.seq.Add(1), ID: id, Text: text})
			}
		}
		c.actions.Push(&rpc.ActionInvokedSignal{Session: c.session, Seq: c.seq.Add(1), ID: id, ActionKey: key})
		c.closed.Push(&rpc.NotificationClosedSignal{Session: c.session, Seq: c.seq.Add(1), ID: id, Reason: rpc.ReasonDismissed})
	case Dismissed:
		reason := dismissalReason(ev.Reason)
		slog.Info("Notification dismissed", "id", id, "reason", reason)
		c.closed.Push(&rpc.NotificationClosedSignal{Session: c.session, Seq: c.seq.Add(1), ID: id, Reason: reason})
	default:
		slog.Warn("Unknown toast event", "id", id, "kind", ev.Kind)
	}
}

func dismissalReason(r DismissalReason) uint32 {
	switch r {
	case TimedOut:
		return rpc.ReasonExpired
	case UserCanceled:
		return rpc.ReasonDismissed
	case ApplicationHidden:
		return rpc.ReasonClosed
	}
	return rpc.ReasonUndefined
}
