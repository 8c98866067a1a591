package engine

import (
	"math"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of engine observability counters.
type Stats struct {
	FillRatio        float64 // Buffer fill level at the last callback, 0..1
	SkipCount        int64   // Frames emitted as silence due to underrun this window
	ClipCount        int64   // Samples soft clipped this window
	StepsPerSecond   int     // Steps executed in the last completed 1-second window
	ReadCursor       int
	WriteCursor      int
	Reacquires       int64 // Buffer view re-acquisitions since construction
	DroppedCallbacks int64 // Re-entrant callbacks that were dropped
	Callbacks        int64 // Processed callbacks since construction
}

// statsCollector publishes counters from the audio callback to readers on
// other goroutines. Writers are only ever the callback holding the guard.
type statsCollector struct {
	window      time.Duration
	windowStart time.Time

	fillBits       atomic.Uint64
	skips          atomic.Int64
	clips          atomic.Int64
	stepsPerSecond atomic.Int64
	readCursor     atomic.Int64
	writeCursor    atomic.Int64
	reacquires     atomic.Int64
	dropped        atomic.Int64
	callbacks      atomic.Int64
}

func newStatsCollector(window time.Duration, now time.Time) *statsCollector {
	return &statsCollector{window: window, windowStart: now}
}

// roll resets the windowed counters once the window has elapsed.
func (s *statsCollector) roll(now time.Time) {
	if now.Sub(s.windowStart) < s.window {
		return
	}
	s.skips.Store(0)
	s.clips.Store(0)
	s.windowStart = now
}

func (s *statsCollector) publish(fill float64, readCursor, writeCursor int) {
	s.fillBits.Store(math.Float64bits(fill))
	s.readCursor.Store(int64(readCursor))
	s.writeCursor.Store(int64(writeCursor))
}

func (s *statsCollector) snapshot() Stats {
	return Stats{
		FillRatio:        math.Float64frombits(s.fillBits.Load()),
		SkipCount:        s.skips.Load(),
		ClipCount:        s.clips.Load(),
		StepsPerSecond:   int(s.stepsPerSecond.Load()),
		ReadCursor:       int(s.readCursor.Load()),
		WriteCursor:      int(s.writeCursor.Load()),
		Reacquires:       s.reacquires.Load(),
		DroppedCallbacks: s.dropped.Load(),
		Callbacks:        s.callbacks.Load(),
	}
}
