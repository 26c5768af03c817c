// Package supervisor starts the renderer process on demand and stops it
// once no notification needs it any more.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
)

var (
	ErrExitedBeforeReady = errors.New("renderer exited before it was ready")
	ErrReadyTimeout      = errors.New("renderer did not become ready in time")
	ErrStartFailed       = errors.New("failed to start renderer")
	ErrSupervisorClosed  = errors.New("supervisor closed")
)

// State is the lifecycle state of the supervised process.
type State int

const (
	Idle State = iota
	Starting
	Running
	ShuttingDownGraceful
	ShuttingDownForced
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDownGraceful:
		return "shutting down"
	case ShuttingDownForced:
		return "killing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Process is a launched renderer.
type Process interface {
	Pid() int
	Wait() error
	Kill() error
}

// Launcher starts renderer processes.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// Options configure a Supervisor. Zero values take the defaults.
type Options struct {
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	ReadyTimeout    time.Duration
	RestartInterval time.Duration
	RestartBurst    int
	Clock           clock.Clock
}

func (o *Options) setDefaults() {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 10 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 10 * time.Second
	}
	if o.RestartInterval <= 0 {
		o.RestartInterval = time.Second
	}
	if o.RestartBurst <= 0 {
		o.RestartBurst = 3
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
}

// run is one launch of the process.
type run struct {
	gen     uint64
	proc    Process
	ready   bool
	running chan struct{}
	exited  chan struct{}
	err     error
}

// Supervisor owns at most one renderer process.
type Supervisor struct {
	launcher Launcher
	opts     Options
	limiter  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	gen          uint64
	current      *run
	interest     map[uint32]struct{}
	idleTimer    *clock.Timer
	idleSeq      uint64
	readyTimer   *clock.Timer
	graceTimer   *clock.Timer
	listeners    map[int]chan struct{}
	nextListener int
	closed       bool
	closedCh     chan struct{}
}

// New creates an idle supervisor.
func New(launcher Launcher, opts Options) *Supervisor {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		launcher:  launcher,
		opts:      opts,
		limiter:   rate.NewLimiter(rate.Every(opts.RestartInterval), opts.RestartBurst),
		ctx:       ctx,
		cancel:    cancel,
		interest:  make(map[uint32]struct{}),
		listeners: make(map[int]chan struct{}),
		closedCh:  make(chan struct{}),
	}
}

// State reports the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interest reports how many notifications keep the process alive.
func (s *Supervisor) Interest() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interest)
}

// RequestStart records interest in id and returns once the process is
// running, starting it if needed. Any armed idle deadline is cancelled.
func (s *Supervisor) RequestStart(ctx context.Context, id uint32) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrSupervisorClosed
		}
		s.stopIdleLocked()
		s.interest[id] = struct{}{}

		switch s.state {
		case Running:
			s.mu.Unlock()
			return nil
		case Idle:
			r := s.startLocked()
			s.mu.Unlock()
			return s.waitRunning(ctx, r)
		case Starting:
			r := s.current
			s.mu.Unlock()
			return s.waitRunning(ctx, r)
		default:
			// Let the current process exit, then start a new one.
			r := s.current
			s.mu.Unlock()
			select {
			case <-r.exited:
			case <-ctx.Done():
				return ctx.Err()
			case <-s.closedCh:
				return ErrSupervisorClosed
			}
		}
	}
}

func (s *Supervisor) waitRunning(ctx context.Context, r *run) error {
	select {
	case <-r.running:
		return nil
	case <-r.exited:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closedCh:
		return ErrSupervisorClosed
	}
}

func (s *Supervisor) startLocked() *run {
	s.gen++
	r := &run{
		gen:     s.gen,
		running: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	s.current = r
	s.state = Starting
	go s.launch(r)
	return r
}

func (s *Supervisor) launch(r *run) {
	if err := s.limiter.Wait(s.ctx); err != nil {
		s.finish(r, fmt.Errorf("%w: %w", ErrStartFailed, err))
		return
	}
	proc, err := s.launcher.Launch(s.ctx)
	if err != nil {
		s.finish(r, fmt.Errorf("%w: %w", ErrStartFailed, err))
		return
	}

	s.mu.Lock()
	r.proc = proc
	// The renderer may connect before Launch returns, so readiness can
	// already be recorded here.
	kill := s.current != r || s.state == ShuttingDownForced
	if !kill && !r.ready {
		gen := r.gen
		s.readyTimer = s.opts.Clock.AfterFunc(s.opts.ReadyTimeout, func() { s.onReadyTimeout(gen) })
	}
	s.mu.Unlock()

	slog.Info("Renderer started", "pid", proc.Pid())
	if kill {
		_ = proc.Kill()
	}
	s.finish(r, proc.Wait())
}

// finish records the exit of r and returns the supervisor to Idle.
func (s *Supervisor) finish(r *run, exitErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.err == nil {
		switch {
		case !r.ready && exitErr != nil && errors.Is(exitErr, ErrStartFailed):
			r.err = exitErr
		case !r.ready && exitErr != nil:
			r.err = fmt.Errorf("%w: %w", ErrExitedBeforeReady, exitErr)
		case !r.ready:
			r.err = ErrExitedBeforeReady
		}
	}
	if r.proc != nil {
		slog.Info("Renderer exited", "pid", r.proc.Pid(), "error", exitErr)
	} else {
		slog.Warn("Renderer not started", "error", r.err)
	}
	close(r.exited)
	if s.current != r {
		return
	}
	s.readyTimer.Stop()
	s.graceTimer.Stop()
	s.stopIdleLocked()
	s.readyTimer, s.graceTimer = nil, nil
	s.current = nil
	s.state = Idle
	clear(s.interest)
}

// MarkReady moves a starting process to Running and releases waiters.
func (s *Supervisor) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.current
	if s.state != Starting || r == nil {
		return
	}
	s.readyTimer.Stop()
	s.readyTimer = nil
	s.state = Running
	r.ready = true
	close(r.running)
	slog.Debug("Renderer ready")
	if len(s.interest) == 0 {
		s.armIdleLocked()
	}
}

// NotificationHandled drops interest in id. The idle deadline is armed when
// no interest remains.
func (s *Supervisor) NotificationHandled(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.interest, id)
	if len(s.interest) == 0 && s.state == Running {
		s.armIdleLocked()
	}
}

// SubscribeShutdown registers a shutdown listener. The returned channel
// receives one value when the process should exit.
func (s *Supervisor) SubscribeShutdown() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	ch := make(chan struct{}, 1)
	s.listeners[id] = ch
	if s.state == ShuttingDownGraceful {
		ch <- struct{}{}
	}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// HasShutdownListener reports whether a graceful shutdown is possible.
func (s *Supervisor) HasShutdownListener() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners) > 0
}

func (s *Supervisor) armIdleLocked() {
	s.stopIdleLocked()
	s.idleSeq++
	seq := s.idleSeq
	s.idleTimer = s.opts.Clock.AfterFunc(s.opts.IdleTimeout, func() { s.onIdle(seq) })
}

func (s *Supervisor) stopIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	s.idleSeq++
}

func (s *Supervisor) onIdle(seq uint64) {
	s.mu.Lock()
	if seq != s.idleSeq || s.state != Running || len(s.interest) > 0 {
		s.mu.Unlock()
		return
	}
	s.idleTimer = nil
	slog.Info("Renderer idle, shutting down")
	proc := s.beginShutdownLocked()
	s.mu.Unlock()
	if proc != nil {
		_ = proc.Kill()
	}
}

// beginShutdownLocked asks listeners to exit, or returns the process to
// kill when there is nobody to ask.
func (s *Supervisor) beginShutdownLocked() Process {
	r := s.current
	if len(s.listeners) == 0 {
		s.state = ShuttingDownForced
		if r.proc == nil {
			return nil
		}
		return r.proc
	}
	s.state = ShuttingDownGraceful
	for _, ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	gen := r.gen
	s.graceTimer = s.opts.Clock.AfterFunc(s.opts.ShutdownTimeout, func() { s.onGraceExpired(gen) })
	return nil
}

func (s *Supervisor) onGraceExpired(gen uint64) {
	s.mu.Lock()
	r := s.current
	if r == nil || r.gen != gen || s.state != ShuttingDownGraceful {
		s.mu.Unlock()
		return
	}
	s.graceTimer = nil
	s.state = ShuttingDownForced
	proc := r.proc
	s.mu.Unlock()
	if proc != nil {
		slog.Warn("Renderer did not exit in time, killing", "pid", proc.Pid())
		_ = proc.Kill()
	}
}

func (s *Supervisor) onReadyTimeout(gen uint64) {
	s.mu.Lock()
	r := s.current
	if r == nil || r.gen != gen || s.state != Starting {
		s.mu.Unlock()
		return
	}
	s.readyTimer = nil
	s.state = ShuttingDownForced
	r.err = ErrReadyTimeout
	proc := r.proc
	s.mu.Unlock()
	slog.Warn("Renderer did not connect in time, killing", "pid", proc.Pid())
	_ = proc.Kill()
}

// Close shuts a running process down gracefully, force-killing it when ctx
// ends first, and then releases every waiter with ErrSupervisorClosed.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopIdleLocked()
	r := s.current
	var kill Process
	switch s.state {
	case Running:
		kill = s.beginShutdownLocked()
	case Starting:
		s.state = ShuttingDownForced
		kill = r.proc
	}
	s.mu.Unlock()

	if kill != nil {
		_ = kill.Kill()
	}

	var err error
	if r != nil {
		select {
		case <-r.exited:
		case <-ctx.Done():
			err = ctx.Err()
			s.mu.Lock()
			proc := r.proc
			s.mu.Unlock()
			if proc != nil {
				_ = proc.Kill()
			}
		}
	}
	s.cancel()
	close(s.closedCh)
	return err
}
