// Package correlate multiplexes many logical request/reply calls over one
// long-lived duplex stream and drives fire-and-forget signal streams.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrCancelled is returned to callers whose reply can no longer arrive.
	ErrCancelled = errors.New("call cancelled")
	// ErrClosed is returned by calls on a closed channel.
	ErrClosed = errors.New("channel closed")
)

type result[In any] struct {
	in  In
	err error
}

type slot[In any] struct {
	done       chan result[In]
	attachment uint64
}

// Channel correlates outbound calls with inbound replies by serial. The
// outbound side is a stream attached with Attach; replies read from that
// stream are handed to Dispatch.
type Channel[Out, In any] struct {
	name     string
	serialOf func(In) uint32
	gate     *Gate

	mu         sync.Mutex
	serial     uint32
	pending    map[uint32]*slot[In]
	send       func(Out) error
	attachment uint64
	closed     error
	done       chan struct{}

	sendMu sync.Mutex
}

// NewChannel creates a channel. serialOf extracts the serial from a reply.
func NewChannel[Out, In any](name string, serialOf func(In) uint32) *Channel[Out, In] {
	return &Channel[Out, In]{
		name:     name,
		serialOf: serialOf,
		gate:     NewGate(),
		pending:  make(map[uint32]*slot[In]),
		done:     make(chan struct{}),
	}
}

// Gate returns the subscriber gate flipped by Attach and its detach func.
func (c *Channel[Out, In]) Gate() *Gate {
	return c.gate
}

// Attach makes send the outbound stream. The returned detach func must be
// called when the stream ends; it fails every call still waiting on a reply
// sent over this attachment.
func (c *Channel[Out, In]) Attach(send func(Out) error) (detach func(error)) {
	c.mu.Lock()
	c.attachment++
	id := c.attachment
	c.send = send
	c.mu.Unlock()
	c.gate.Enter()

	var once sync.Once
	return func(cause error) {
		once.Do(func() {
			c.mu.Lock()
			if c.attachment == id {
				c.send = nil
			}
			c.failLocked(cause, func(s *slot[In]) bool { return s.attachment == id })
			c.mu.Unlock()
			c.gate.Leave()
		})
	}
}

// Call registers a completion slot, sends the item built for its serial and
// waits for the matching reply. It waits for an attached stream first.
func (c *Channel[Out, In]) Call(ctx context.Context, build func(serial uint32) Out) (In, error) {
	var zero In
	for {
		if err := c.gate.waitOr(ctx, c.done); err != nil {
			return zero, fmt.Errorf("%w: waiting for %s stream: %w", ErrCancelled, c.name, err)
		}

		c.mu.Lock()
		if c.closed != nil {
			c.mu.Unlock()
			return zero, c.closed
		}
		if c.send == nil {
			// Detached between Wait and Lock.
			c.mu.Unlock()
			continue
		}
		c.serial++
		serial := c.serial
		s := &slot[In]{done: make(chan result[In], 1), attachment: c.attachment}
		c.pending[serial] = s
		send := c.send
		c.mu.Unlock()

		c.sendMu.Lock()
		err := send(build(serial))
		c.sendMu.Unlock()
		if err != nil {
			c.remove(serial)
			return zero, fmt.Errorf("failed to send %s call %d: %w", c.name, serial, err)
		}

		select {
		case r := <-s.done:
			return r.in, r.err
		case <-ctx.Done():
			c.remove(serial)
			return zero, fmt.Errorf("%w: %s call %d: %w", ErrCancelled, c.name, serial, ctx.Err())
		}
	}
}

// Dispatch resolves the call waiting for in's serial. Replies for unknown
// or already resolved serials are dropped and reported as false.
func (c *Channel[Out, In]) Dispatch(in In) bool {
	serial := c.serialOf(in)
	c.mu.Lock()
	s, ok := c.pending[serial]
	delete(c.pending, serial)
	c.mu.Unlock()
	if !ok {
		slog.Debug("Dropping reply for unknown serial", "channel", c.name, "serial", serial)
		return false
	}
	s.done <- result[In]{in: in}
	return true
}

// Pending reports the number of calls waiting for a reply.
func (c *Channel[Out, In]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close fails every pending call and makes later calls fail fast.
func (c *Channel[Out, In]) Close(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		return
	}
	if cause == nil {
		c.closed = fmt.Errorf("%w: %s", ErrClosed, c.name)
	} else {
		c.closed = fmt.Errorf("%w: %s: %w", ErrClosed, c.name, cause)
	}
	c.failLocked(cause, func(*slot[In]) bool { return true })
	c.send = nil
	close(c.done)
}

func (c *Channel[Out, In]) failLocked(cause error, match func(*slot[In]) bool) {
	err := fmt.Errorf("%w: %s stream ended", ErrCancelled, c.name)
	if cause != nil {
		err = fmt.Errorf("%w: %s stream ended: %w", ErrCancelled, c.name, cause)
	}
	for serial, s := range c.pending {
		if match(s) {
			delete(c.pending, serial)
			s.done <- result[In]{err: err}
		}
	}
}

func (c *Channel[Out, In]) remove(serial uint32) {
	c.mu.Lock()
	delete(c.pending, serial)
	c.mu.Unlock()
}
