package daemon

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/mblarsen/wsl-notifyd/internal/renderer"
	"github.com/mblarsen/wsl-notifyd/internal/supervisor"
)

// inProcessLauncher runs the renderer client on a goroutine, authenticated
// with a bundle issued by the daemon's session like a real launch.
type inProcessLauncher struct {
	daemon  *Daemon
	toaster *mockToaster

	mu       sync.Mutex
	launches int
}

func (l *inProcessLauncher) Launch(context.Context) (supervisor.Process, error) {
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()

	b, err := l.daemon.Session().IssueBundle()
	if err != nil {
		return nil, err
	}
	cfg, err := b.ClientTLSConfig()
	b.Zero()
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(l.daemon.Addr().String(), grpc.WithTransportCredentials(credentials.NewTLS(cfg)))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &inProcess{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer conn.Close()
		p.err = renderer.New(conn, renderer.Options{Toaster: l.toaster}).Run(ctx)
	}()
	return p, nil
}

func (l *inProcessLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

type inProcess struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *inProcess) Pid() int { return 0 }

func (p *inProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *inProcess) Kill() error {
	p.cancel()
	return nil
}

type mockToaster struct {
	mu    sync.Mutex
	shown []*renderer.Toast
}

func (m *mockToaster) Show(t *renderer.Toast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, t)
	return nil
}

func (m *mockToaster) Hide(tag string) error {
	m.mu.Lock()
	var t *renderer.Toast
	for _, s := range m.shown {
		if s.Tag == tag {
			t = s
		}
	}
	m.mu.Unlock()
	if t != nil {
		t.OnEvent(renderer.Event{Kind: renderer.Dismissed, Reason: renderer.ApplicationHidden})
	}
	return nil
}

func (m *mockToaster) MessageDuration() time.Duration {
	return 3 * time.Second
}

func (m *mockToaster) last() *renderer.Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.shown) == 0 {
		return nil
	}
	return m.shown[len(m.shown)-1]
}

type busEvent struct {
	signal string
	id     uint32
	value  any
}

type mockBus struct {
	events chan busEvent
	mu     sync.Mutex
	closed bool
}

func newMockBus() *mockBus {
	return &mockBus{events: make(chan busEvent, 16)}
}

func (b *mockBus) NotificationClosed(id, reason uint32) error {
	b.events <- busEvent{"NotificationClosed", id, reason}
	return nil
}

func (b *mockBus) ActionInvoked(id uint32, key string) error {
	b.events <- busEvent{"ActionInvoked", id, key}
	return nil
}

func (b *mockBus) NotificationReplied(id uint32, text string) error {
	b.events <- busEvent{"NotificationReplied", id, text}
	return nil
}

func (b *mockBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *mockBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type notifyRecorder struct {
	mu     sync.Mutex
	states []string
}

func (r *notifyRecorder) notify(state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return true, nil
}

func (r *notifyRecorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}
