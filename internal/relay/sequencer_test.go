package relay

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mblarsen/wsl-notifyd/internal/clock"
)

type recorder struct {
	got []uint64
}

func (r *recorder) emit(seq uint64) func() {
	return func() { r.got = append(r.got, seq) }
}

func TestSequencerInOrder(t *testing.T) {
	q := newSequencer(clock.NewFake(time.Unix(0, 0)), time.Second)
	var r recorder
	for seq := uint64(1); seq <= 3; seq++ {
		q.deliver(7, seq, r.emit(seq))
	}
	assert.Equal(t, []uint64{1, 2, 3}, r.got)
}

func TestSequencerReordersAcrossStreams(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	q := newSequencer(clk, time.Second)
	var r recorder

	q.deliver(7, 3, r.emit(3))
	q.deliver(7, 2, r.emit(2))
	assert.Empty(t, r.got)
	assert.Equal(t, 1, clk.Pending())

	q.deliver(7, 1, r.emit(1))
	assert.Equal(t, []uint64{1, 2, 3}, r.got)
	assert.Equal(t, 0, clk.Pending())
}

func TestSequencerSkipsStaleGap(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	q := newSequencer(clk, 2*time.Second)
	var r recorder

	q.deliver(7, 1, r.emit(1))
	q.deliver(7, 3, r.emit(3))
	q.deliver(7, 5, r.emit(5))
	clk.Advance(time.Second)
	assert.Equal(t, []uint64{1}, r.got)

	clk.Advance(time.Second)
	assert.Equal(t, []uint64{1, 3}, r.got)

	// The next gap gets its own full timeout.
	clk.Advance(2 * time.Second)
	assert.Equal(t, []uint64{1, 3, 5}, r.got)

	// A straggler from a skipped gap is still emitted.
	q.deliver(7, 2, r.emit(2))
	assert.Equal(t, []uint64{1, 3, 5, 2}, r.got)
}

func TestSequencerNewSessionResets(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	q := newSequencer(clk, time.Second)
	var r recorder

	q.deliver(1, 1, r.emit(1))
	q.deliver(1, 3, r.emit(3))
	q.deliver(2, 1, r.emit(101))
	assert.Equal(t, []uint64{1, 3, 101}, r.got)
	assert.Equal(t, 0, clk.Pending())
}

func TestSequencerCloseFlushes(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	q := newSequencer(clk, time.Second)
	var r recorder

	q.deliver(1, 4, r.emit(4))
	q.deliver(1, 2, r.emit(2))
	q.close()
	assert.Equal(t, []uint64{2, 4}, r.got)
	assert.Equal(t, 0, clk.Pending())
}

func TestSequencerSlowEmitDoesNotBlockDelivery(t *testing.T) {
	q := newSequencer(clock.NewFake(time.Unix(0, 0)), time.Second)

	var mu sync.Mutex
	var got []uint64
	record := func(seq uint64) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, seq)
	}
	emitted := func() []uint64 {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(got)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	go q.deliver(7, 1, func() {
		close(started)
		<-release
		record(1)
	})
	<-started

	delivered := make(chan struct{})
	go func() {
		q.deliver(7, 2, func() { record(2) })
		q.deliver(8, 1, func() { record(101) })
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("delivery blocked behind a slow emit")
	}
	assert.Empty(t, emitted())

	close(release)
	require.Eventually(t, func() bool { return len(emitted()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []uint64{1, 2, 101}, emitted())
}
