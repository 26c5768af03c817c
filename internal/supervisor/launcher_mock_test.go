package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errKilled = errors.New("signal: killed")

type fakeProcess struct {
	pid     int
	done    chan struct{}
	once    sync.Once
	exitErr error
	killed  atomic.Bool
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.exitErr
}

func (p *fakeProcess) Kill() error {
	p.killed.Store(true)
	p.exit(errKilled)
	return nil
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		close(p.done)
	})
}

type fakeLauncher struct {
	mu       sync.Mutex
	procs    []*fakeProcess
	launched chan *fakeProcess
	err      error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeProcess, 16)}
}

func (l *fakeLauncher) Launch(context.Context) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	p := &fakeProcess{pid: 1000 + len(l.procs), done: make(chan struct{})}
	l.procs = append(l.procs, p)
	l.launched <- p
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}
