package monitor

import (
	"math"
	"time"
)

// fpsHistory is how many instantaneous rates the rolling average covers.
const fpsHistory = 10

// FPSMeter measures the sample rate from successive timestamps.
type FPSMeter struct {
	last    time.Time
	hasLast bool

	window [fpsHistory]float64
	n      int
	next   int
	rate   float64

	// Summary over every rolling value reported.
	count    int
	sum      float64
	min, max float64
}

// Tick records a sample at now and returns the rolling average rate.
func (f *FPSMeter) Tick(now time.Time) float64 {
	if !f.hasLast {
		f.last, f.hasLast = now, true
		return f.rate
	}
	dt := now.Sub(f.last).Seconds()
	f.last = now

	inst := 0.0
	if dt > 0 {
		inst = 1 / dt
	}
	f.window[f.next] = inst
	f.next = (f.next + 1) % fpsHistory
	if f.n < fpsHistory {
		f.n++
	}

	var total float64
	for i := 0; i < f.n; i++ {
		total += f.window[i]
	}
	f.rate = total / float64(f.n)

	if f.count == 0 {
		f.min, f.max = f.rate, f.rate
	}
	f.count++
	f.sum += f.rate
	f.min = math.Min(f.min, f.rate)
	f.max = math.Max(f.max, f.rate)
	return f.rate
}

// Rate returns the current rolling average.
func (f *FPSMeter) Rate() float64 {
	return f.rate
}

// FPSSummary is the average, minimum and maximum of all reported rates.
type FPSSummary struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary returns statistics over every rate reported so far.
func (f *FPSMeter) Summary() FPSSummary {
	if f.count == 0 {
		return FPSSummary{}
	}
	return FPSSummary{Avg: f.sum / float64(f.count), Min: f.min, Max: f.max}
}
