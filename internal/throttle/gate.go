// Package throttle decides which camera frames are allowed into the detection pipeline.
package throttle

import (
	"sync"
	"time"
)

// DefaultMinInterval is the minimum time between two admitted frames.
const DefaultMinInterval = 1500 * time.Millisecond

// Stats counts gate decisions.
type Stats struct {
	Admitted         uint64 `json:"admitted"`
	RejectedInFlight uint64 `json:"rejected_in_flight"`
	RejectedInterval uint64 `json:"rejected_interval"`
	RejectedDup      uint64 `json:"rejected_duplicate"`
}

// Gate admits at most one frame at a time and no more than one frame per
// minimum interval. Frames are timestamped by the camera; the gate uses those
// timestamps as its clock.
//
// Admit is cheap and never blocks, so it can be called from the camera
// callback. Whoever receives an admitted frame must call Release exactly when
// the frame's detection and annotation cycle ends, on every exit path.
type Gate struct {
	minInterval time.Duration

	mu       sync.Mutex
	inFlight bool
	hasLast  bool
	last     time.Duration
	stats    Stats
}

// NewGate creates a Gate with the given minimum interval.
// Values less than or equal to 0 fall back to DefaultMinInterval.
func NewGate(minInterval time.Duration) *Gate {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Gate{minInterval: minInterval}
}

// Ready reports whether Admit would accept a frame at ts, without marking the
// gate in flight. It lets callers skip per-frame work on frames the gate
// would reject anyway. A negative answer is counted in Stats.
func (g *Gate) Ready(ts time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(ts)
}

// Admit reports whether a frame with the given timestamp may be processed.
// A rejected frame leaves the gate untouched. An admitted frame marks the
// gate in flight and becomes the last processed timestamp.
func (g *Gate) Admit(ts time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.checkLocked(ts) {
		return false
	}

	g.inFlight = true
	g.hasLast = true
	g.last = ts
	g.stats.Admitted++
	return true
}

func (g *Gate) checkLocked(ts time.Duration) bool {
	if g.inFlight {
		g.stats.RejectedInFlight++
		return false
	}
	if g.hasLast {
		if ts == g.last {
			g.stats.RejectedDup++
			return false
		}
		if ts-g.last < g.minInterval {
			g.stats.RejectedInterval++
			return false
		}
	}
	return true
}

// Release ends the current cycle. Calling it when nothing is in flight is a no-op.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

// InFlight reports whether a frame is currently being processed.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// MinInterval returns the configured minimum interval.
func (g *Gate) MinInterval() time.Duration {
	return g.minInterval
}

// Reset forgets the last processed timestamp so the next frame is admitted
// regardless of spacing. The in-flight flag is left alone.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasLast = false
	g.last = 0
}

// Stats returns a copy of the gate counters.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
