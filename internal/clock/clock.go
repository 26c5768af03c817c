// Package clock abstracts time so that timers in the supervisor and the
// signal sequencer can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is an interface for time-related functions to allow for mocking.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable one-shot callback returned by AfterFunc.
type Timer struct {
	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the call stopped
// the timer, false if it had already fired or been stopped.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

// Fake is a manually advanced Clock. Callbacks whose deadline is reached run
// synchronously inside Advance, in deadline order, without the fake's lock
// held.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	waiters map[int]*waiter
}

type waiter struct {
	id       int
	deadline time.Time
	f        func()
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, waiters: make(map[int]*waiter)}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run once the fake time reaches now+d. A
// non-positive d runs f on its own goroutine immediately, mirroring
// time.AfterFunc, so callers holding their own locks do not deadlock.
func (c *Fake) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		go f()
		return &Timer{stop: func() bool { return false }}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	w := &waiter{id: c.nextID, deadline: c.now.Add(d), f: f}
	c.waiters[w.id] = w
	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.waiters[w.id]; !ok {
			return false
		}
		delete(c.waiters, w.id)
		return true
	}}
}

// Advance moves the fake time forward by d and fires every timer that
// became due.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*waiter
	for id, w := range c.waiters {
		if !w.deadline.After(c.now) {
			due = append(due, w)
			delete(c.waiters, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	for _, w := range due {
		w.f()
	}
}

// Pending reports how many timers are armed and have not fired.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
