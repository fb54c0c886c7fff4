package drowsiness

import (
	"testing"
	"time"
)

func TestClosureHistory_GrowPreservesOrder(t *testing.T) {
	h := newClosureHistory(4)

	// Pop a few first so the ring wraps before it grows.
	for i := 0; i < 10; i++ {
		h.PushBack(ClosureSample{At: epoch.Add(time.Duration(i) * time.Second)})
	}
	for i := 0; i < 5; i++ {
		h.PopFront()
	}
	for i := 10; i < 50; i++ {
		h.PushBack(ClosureSample{At: epoch.Add(time.Duration(i) * time.Second)})
	}

	if h.Len() != 45 {
		t.Fatalf("Len() = %d, want 45", h.Len())
	}
	want := 5
	h.Each(func(s ClosureSample) {
		if got := int(s.At.Sub(epoch) / time.Second); got != want {
			t.Errorf("got sample %d, want %d", got, want)
		}
		want++
	})
}

func TestClosureHistory_PruneAndClear(t *testing.T) {
	h := newClosureHistory(0)
	for i := 0; i < 30; i++ {
		h.PushBack(ClosureSample{At: epoch.Add(time.Duration(i) * time.Second), Closed: i%2 == 0})
	}

	h.PruneBefore(epoch.Add(29*time.Second), 10*time.Second)
	if h.Len() != 11 {
		t.Errorf("Len() after prune = %d, want 11", h.Len())
	}
	if got := h.Front().At; !got.Equal(epoch.Add(19 * time.Second)) {
		t.Errorf("Front() = %v, want 19s", got.Sub(epoch))
	}

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() after clear = %d, want 0", h.Len())
	}
	h.PushBack(ClosureSample{At: epoch})
	if h.Len() != 1 || !h.Front().At.Equal(epoch) {
		t.Error("history unusable after Clear")
	}
}
