package relay

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
)

// sequencer emits renderer signals in the order the renderer produced them,
// even though they arrive over three independent streams. A signal waits
// until its predecessor has been emitted. A gap that stays open longer than
// the gap timeout is skipped. Emission runs outside the lock, one goroutine
// at a time, in queue order.
type sequencer struct {
	clock clock.Clock
	gap   time.Duration

	mu       sync.Mutex
	session  uint64
	next     uint64
	pending  map[uint64]func()
	timer    *clock.Timer
	timerSeq uint64
	ready    []func()
	draining bool
}

func newSequencer(c clock.Clock, gap time.Duration) *sequencer {
	return &sequencer{clock: c, gap: gap, next: 1, pending: make(map[uint64]func())}
}

func (q *sequencer) deliver(session, seq uint64, emit func()) {
	q.mu.Lock()
	q.enqueueLocked(session, seq, emit)
	q.mu.Unlock()
	q.run()
}

func (q *sequencer) enqueueLocked(session, seq uint64, emit func()) {
	if session != q.session {
		q.flushLocked()
		q.session = session
		q.next = 1
	}
	switch {
	case seq < q.next:
		slog.Debug("Emitting late signal", "seq", seq, "next", q.next)
		q.ready = append(q.ready, emit)
		return
	case seq > q.next:
		q.pending[seq] = emit
		if q.timer == nil {
			q.armLocked()
		}
		return
	}
	q.ready = append(q.ready, emit)
	q.next++
	q.drainLocked()
}

func (q *sequencer) drainLocked() {
	for {
		emit, ok := q.pending[q.next]
		if !ok {
			break
		}
		delete(q.pending, q.next)
		q.ready = append(q.ready, emit)
		q.next++
	}
	q.stopLocked()
	if len(q.pending) > 0 {
		q.armLocked()
	}
}

// run emits the ready queue unless another goroutine already does.
func (q *sequencer) run() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.ready) > 0 {
		batch := q.ready
		q.ready = nil
		q.mu.Unlock()
		for _, emit := range batch {
			emit()
		}
		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}

func (q *sequencer) armLocked() {
	q.timerSeq++
	seq := q.timerSeq
	q.timer = q.clock.AfterFunc(q.gap, func() { q.onGap(seq) })
}

func (q *sequencer) stopLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.timerSeq++
}

func (q *sequencer) onGap(seq uint64) {
	q.mu.Lock()
	if seq != q.timerSeq || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	lowest := slices.Min(slices.Collect(maps.Keys(q.pending)))
	slog.Warn("Skipping missing signals", "from", q.next, "to", lowest-1)
	q.next = lowest
	q.drainLocked()
	q.mu.Unlock()
	q.run()
}

func (q *sequencer) flushLocked() {
	for _, seq := range slices.Sorted(maps.Keys(q.pending)) {
		q.ready = append(q.ready, q.pending[seq])
	}
	clear(q.pending)
	q.stopLocked()
}

// close drops the gap timer; pending signals are emitted.
func (q *sequencer) close() {
	q.mu.Lock()
	q.flushLocked()
	q.mu.Unlock()
	q.run()
}
