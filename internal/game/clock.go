// internal/game/clock.go
//
// Scheduling abstraction for deferred transitions (reverts, feedback expiry).
// RealClock defers to time.AfterFunc; ManualClock lets tests advance virtual
// time deterministically.

package game

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback that may be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// RealClock schedules on the runtime timer heap. Callbacks run on their own
// goroutine.
type RealClock struct{}

func (RealClock) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// ManualClock is a Scheduler driven by Advance. Callbacks run synchronously
// on the goroutine calling Advance, in due-time order, ties broken by
// scheduling order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	pending []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Duration
	seq   uint64
	fn    func()
}

// NewManualClock returns a clock at virtual time zero.
func NewManualClock() *ManualClock { return &ManualClock{} }

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, fn: fn}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves virtual time forward by d, firing every timer that comes due.
// Timers scheduled by a callback fire in the same call if they fall inside
// the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		next := c.popDue(target)
		if next == nil {
			break
		}
		c.now = next.at
		c.mu.Unlock()
		next.fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Elapsed returns the virtual time since the clock was created.
func (c *ManualClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// popDue removes and returns the earliest timer due at or before target.
func (c *ManualClock) popDue(target time.Duration) *manualTimer {
	if len(c.pending) == 0 {
		return nil
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].at == c.pending[j].at {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].at < c.pending[j].at
	})
	first := c.pending[0]
	if first.at > target {
		return nil
	}
	c.pending = c.pending[1:]
	return first
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == t {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
