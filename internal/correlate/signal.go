package correlate

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Drain reads a fire-and-forget stream in order and hands each item to
// handle. A clean end of stream returns nil; any other receive error ends
// the loop and is returned.
func Drain[T any](ctx context.Context, recv func() (*T, error), handle func(*T)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		handle(msg)
	}
}

// Pump is an ordered queue feeding one outbound stream.
type Pump[T any] struct {
	ch        chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewPump creates a pump buffering up to size items.
func NewPump[T any](size int) *Pump[T] {
	return &Pump[T]{ch: make(chan T, size), done: make(chan struct{})}
}

// Push queues v. It blocks only while the buffer is full and reports false
// once the pump is closed.
func (p *Pump[T]) Push(v T) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.ch <- v:
		return true
	case <-p.done:
		return false
	}
}

// Close stops the pump. Queued items are discarded.
func (p *Pump[T]) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Run sends queued items in order until ctx is done, the pump is closed or
// send fails.
func (p *Pump[T]) Run(ctx context.Context, send func(T) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case v := <-p.ch:
			if err := send(v); err != nil {
				return err
			}
		}
	}
}
