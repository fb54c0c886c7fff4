// Package clock provides a testable abstraction over wall-clock time.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current time and sleeps.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// Real implements Clock using the standard time package.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

// Sleep pauses the current goroutine for at least d.
func (Real) Sleep(d time.Duration) { time.Sleep(d) }

// After returns a channel that receives the time once d has elapsed.
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Mock is a manually controlled clock. Sleep advances the clock instead
// of blocking.
type Mock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewMock creates a Mock set to t.
func NewMock(t time.Time) *Mock {
	return &Mock{now: t}
}

// Now returns the mocked time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Since returns the mocked time elapsed since t.
func (m *Mock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Set moves the clock to t, which may be in the past.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Sleep records d and advances the clock by it.
func (m *Mock) Sleep(d time.Duration) {
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// After records d like Sleep and returns a channel that has already
// fired with the advanced time.
func (m *Mock) After(d time.Duration) <-chan time.Time {
	m.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- m.Now()
	return ch
}

// Sleeps returns all recorded sleep durations.
func (m *Mock) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
