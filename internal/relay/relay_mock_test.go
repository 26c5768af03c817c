package relay

import (
	"context"
	"sync"
)

type fakeStarter struct {
	mu        sync.Mutex
	started   []uint32
	handled   []uint32
	ready     int
	err       error
	listeners []chan struct{}
}

func (f *fakeStarter) RequestStart(_ context.Context, id uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	return f.err
}

func (f *fakeStarter) NotificationHandled(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, id)
}

func (f *fakeStarter) MarkReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready++
}

func (f *fakeStarter) SubscribeShutdown() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{}, 1)
	f.listeners = append(f.listeners, ch)
	return ch, func() {}
}

func (f *fakeStarter) requestShutdown() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.listeners {
		ch <- struct{}{}
	}
	return len(f.listeners)
}

func (f *fakeStarter) handledIDs() []uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint32(nil), f.handled...)
}

func (f *fakeStarter) readyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeStarter) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

type emitted struct {
	kind   string
	id     uint32
	reason uint32
	text   string
}

type fakeEmitter struct {
	events chan emitted
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{events: make(chan emitted, 32)}
}

func (e *fakeEmitter) NotificationClosed(id, reason uint32) error {
	e.events <- emitted{kind: "closed", id: id, reason: reason}
	return nil
}

func (e *fakeEmitter) ActionInvoked(id uint32, key string) error {
	e.events <- emitted{kind: "action", id: id, text: key}
	return nil
}

func (e *fakeEmitter) NotificationReplied(id uint32, text string) error {
	e.events <- emitted{kind: "replied", id: id, text: text}
	return nil
}
