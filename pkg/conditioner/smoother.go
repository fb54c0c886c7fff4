// Package conditioner smooths noisy per-frame scalar signals (eye aspect
// ratio in practice) before they are thresholded.
package conditioner

// DefaultWindow is the number of raw samples averaged by a Smoother.
const DefaultWindow = 5

// Smoother is a fixed-capacity moving average. The oldest value is evicted
// once the buffer is full. Not safe for concurrent use.
type Smoother struct {
	buf  []float64
	head int // index of the oldest value
	n    int
	sum  float64
}

// NewSmoother creates a smoother averaging the last window values.
// A window below 1 is treated as 1 (no smoothing).
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{buf: make([]float64, window)}
}

// Smooth records raw and returns the mean of all buffered values.
func (s *Smoother) Smooth(raw float64) float64 {
	if s.n == len(s.buf) {
		s.sum -= s.buf[s.head]
		s.buf[s.head] = raw
		s.head = (s.head + 1) % len(s.buf)
	} else {
		s.buf[(s.head+s.n)%len(s.buf)] = raw
		s.n++
	}
	s.sum += raw

	// Re-summing keeps float drift from the running total out of long streams.
	if s.head == 0 && s.n == len(s.buf) {
		s.sum = 0
		for _, v := range s.buf {
			s.sum += v
		}
	}
	return s.sum / float64(s.n)
}

// Value returns the current mean. It is 0 until Ready.
func (s *Smoother) Value() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// Ready reports whether at least one value has been recorded.
func (s *Smoother) Ready() bool {
	return s.n > 0
}

// Len returns the number of buffered values.
func (s *Smoother) Len() int {
	return s.n
}

// Window returns the buffer capacity.
func (s *Smoother) Window() int {
	return len(s.buf)
}

// Reset empties the buffer.
func (s *Smoother) Reset() {
	s.head, s.n, s.sum = 0, 0, 0
}
