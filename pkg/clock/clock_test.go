package clock

import (
	"testing"
	"time"
)

func TestMock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMock(start)

	m.Advance(2 * time.Second)
	if got := m.Since(start); got != 2*time.Second {
		t.Errorf("Since = %v, want 2s", got)
	}

	m.Sleep(500 * time.Millisecond)
	if got := m.Now(); !got.Equal(start.Add(2500 * time.Millisecond)) {
		t.Errorf("Now = %v, want start+2.5s", got)
	}
	if s := m.Sleeps(); len(s) != 1 || s[0] != 500*time.Millisecond {
		t.Errorf("Sleeps = %v", s)
	}

	select {
	case at := <-m.After(time.Second):
		if !at.Equal(start.Add(3500 * time.Millisecond)) {
			t.Errorf("After fired at %v, want start+3.5s", at)
		}
	default:
		t.Error("After should fire immediately on the mock")
	}
	if s := m.Sleeps(); len(s) != 2 {
		t.Errorf("Sleeps = %v, want 2 entries", s)
	}

	m.Set(start)
	if !m.Now().Equal(start) {
		t.Errorf("Set did not rewind the clock")
	}
}

func TestReal(t *testing.T) {
	var c Clock = Real{}
	before := c.Now()
	if c.Since(before) < 0 {
		t.Error("Since should be non-negative")
	}
}
