package drowsiness

import "time"

// ClosureSample is one forward-facing eye observation.
type ClosureSample struct {
	At     time.Time
	Closed bool
}

// closureHistory is a growable ring deque ordered by time. Samples are
// appended at the back and pruned from the front.
type closureHistory struct {
	buf  []ClosureSample
	head int
	n    int
}

func newClosureHistory(capacity int) *closureHistory {
	if capacity < 16 {
		capacity = 16
	}
	return &closureHistory{buf: make([]ClosureSample, capacity)}
}

func (h *closureHistory) Len() int { return h.n }

func (h *closureHistory) at(i int) ClosureSample {
	return h.buf[(h.head+i)%len(h.buf)]
}

// Front returns the oldest sample. Callers check Len first.
func (h *closureHistory) Front() ClosureSample {
	return h.buf[h.head]
}

func (h *closureHistory) PushBack(s ClosureSample) {
	if h.n == len(h.buf) {
		h.grow()
	}
	h.buf[(h.head+h.n)%len(h.buf)] = s
	h.n++
}

func (h *closureHistory) PopFront() {
	h.buf[h.head] = ClosureSample{}
	h.head = (h.head + 1) % len(h.buf)
	h.n--
}

// PruneBefore drops samples older than window relative to now.
func (h *closureHistory) PruneBefore(now time.Time, window time.Duration) {
	for h.n > 0 && now.Sub(h.Front().At) > window {
		h.PopFront()
	}
}

// Clear drops every sample but keeps the allocation.
func (h *closureHistory) Clear() {
	h.head, h.n = 0, 0
}

// Each calls fn for every sample from oldest to newest.
func (h *closureHistory) Each(fn func(ClosureSample)) {
	for i := 0; i < h.n; i++ {
		fn(h.at(i))
	}
}

func (h *closureHistory) grow() {
	next := make([]ClosureSample, len(h.buf)*2)
	for i := 0; i < h.n; i++ {
		next[i] = h.at(i)
	}
	h.buf = next
	h.head = 0
}
