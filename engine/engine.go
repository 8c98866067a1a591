// Package engine ties simulation stepping to the cadence of a real-time
// audio callback. Each callback steps the core, drains stereo frames from
// the core's circular sample buffer and shapes them for output.
//
// The engine runs entirely inside the host's audio callback. Process never
// blocks, never allocates and performs at most two simulation steps.
package engine

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	simcore "github.com/user-none/corehost/api"
)

// ErrNoBufferAccessor is returned when the core does not expose its
// sample buffer.
var ErrNoBufferAccessor = errors.New("simulation core does not expose a buffer address accessor")

// ErrInvalidCapacity is returned for a sample buffer capacity that cannot
// hold whole stereo frames.
var ErrInvalidCapacity = errors.New("invalid sample buffer capacity")

// Output is the host audio output the engine is connected to.
type Output interface {
	Resume() error
	IsRunning() bool
	Close() error
}

// Engine is the audio pacing and ring-buffer engine.
type Engine struct {
	core     simcore.Core
	src      simcore.SampleSource
	opts     Options
	capacity int

	// Callback state, owned by whoever holds busy
	view        BufferView
	readCursor  int
	writeCursor int
	pacer       pacer
	shaper      *Shaper
	stats       *statsCollector

	// Control surface, written from any goroutine
	volume    atomic.Uint64
	muted     atomic.Bool
	busy      atomic.Bool
	destroyed atomic.Bool

	outputMu sync.Mutex
	output   Output
}

// New creates an engine for core. The core must implement
// simcore.SampleSource.
func New(core simcore.Core, opts Options) (*Engine, error) {
	src, ok := simcore.Source(core)
	if !ok {
		return nil, ErrNoBufferAccessor
	}

	opts = opts.withDefaults()
	capacity := opts.Capacity
	if reported := src.BufferCapacity(); reported > 0 {
		capacity = reported
	}
	if capacity < 2 || capacity%2 != 0 {
		return nil, fmt.Errorf("%w: %d samples", ErrInvalidCapacity, capacity)
	}

	now := opts.Now()
	e := &Engine{
		core:     core,
		src:      src,
		opts:     opts,
		capacity: capacity,
		pacer:    newPacer(opts, now),
		shaper:   NewShaper(opts.SampleRate),
		stats:    newStatsCollector(opts.StatsWindow, now),
	}
	e.volume.Store(math.Float64bits(1.0))
	e.view = acquire(src, capacity)
	e.writeCursor = e.pollWriteCursor()
	e.publish()
	return e, nil
}

// Capacity returns the sample buffer capacity in samples.
func (e *Engine) Capacity() int {
	return e.capacity
}

// Process is the audio callback entry point. It fills left and right with
// normalized samples. A call made while another is still running is dropped
// and leaves the output untouched.
func (e *Engine) Process(left, right []float32) {
	if e.destroyed.Load() {
		return
	}
	if !e.busy.CompareAndSwap(false, true) {
		e.stats.dropped.Add(1)
		return
	}
	defer e.busy.Store(false)

	// Destroy may have run between the check and the acquire
	if e.destroyed.Load() {
		return
	}

	n := min(len(left), len(right))
	e.process(left[:n], right[:n])
}

func (e *Engine) process(left, right []float32) {
	now := e.opts.Now()
	if steps, rolled := e.pacer.rollWindow(now); rolled {
		e.stats.stepsPerSecond.Store(int64(steps))
	}
	e.stats.roll(now)
	e.stats.callbacks.Add(1)

	// A detached view is re-acquired before anything else; the callback
	// that notices it outputs silence
	reacquired := false
	if !e.view.Valid() {
		e.reacquire()
		reacquired = true
	}

	if e.opts.OnCallback != nil {
		e.opts.OnCallback()
	}

	if reacquired {
		silence(left, right)
		e.publish()
		return
	}

	if e.pacer.consumeBackoff() {
		silence(left, right)
		e.publish()
		return
	}

	e.writeCursor = e.pollWriteCursor()
	fill := fillLevel(e.readCursor, e.writeCursor, e.capacity)

	e.step()
	if e.pacer.wantCatchUp(fill) {
		e.step()
	}

	// Stepping may have grown the core's memory
	if !e.view.Valid() {
		silence(left, right)
		e.publish()
		return
	}

	underrun := false
	var clips int64
	for i := range left {
		if circularDistance(e.readCursor, e.writeCursor, e.capacity) < 2 {
			left[i], right[i] = 0, 0
			underrun = true
			e.stats.skips.Add(1)
			continue
		}
		l, r := e.view.ReadFrame(e.readCursor)
		e.readCursor = wrapCursor(e.readCursor+2, e.capacity)

		var c int
		left[i], right[i], c = e.shaper.Process(l, r, e.gain())
		clips += int64(c)
	}
	if clips > 0 {
		e.stats.clips.Add(clips)
	}
	if underrun {
		e.pacer.noteUnderrun()
	}
	e.publish()
}

// step runs one simulation step and re-polls the write cursor.
func (e *Engine) step() {
	e.core.Step()
	e.pacer.recordStep()
	e.writeCursor = e.pollWriteCursor()
}

func (e *Engine) pollWriteCursor() int {
	return wrapCursor(e.src.WriteCursor(), e.capacity)
}

func (e *Engine) reacquire() {
	e.view = acquire(e.src, e.capacity)
	e.readCursor = wrapCursor(e.readCursor, e.capacity)
	e.writeCursor = e.pollWriteCursor()
	e.stats.reacquires.Add(1)
}

func (e *Engine) publish() {
	e.stats.publish(fillLevel(e.readCursor, e.writeCursor, e.capacity), e.readCursor, e.writeCursor)
}

func (e *Engine) gain() float64 {
	if e.muted.Load() {
		return 0
	}
	return math.Float64frombits(e.volume.Load())
}

func silence(left, right []float32) {
	clear(left)
	clear(right)
}

// SetVolume sets the linear output gain, clamped to [0, 1]. The change takes
// effect on the next processed frame.
func (e *Engine) SetVolume(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.volume.Store(math.Float64bits(v))
}

// Volume returns the linear output gain. It is unaffected by muting.
func (e *Engine) Volume() float64 {
	return math.Float64frombits(e.volume.Load())
}

// SetMuted silences the output without stopping the simulation.
func (e *Engine) SetMuted(muted bool) {
	e.muted.Store(muted)
}

// Muted reports whether the output is muted.
func (e *Engine) Muted() bool {
	return e.muted.Load()
}

// Stats returns a snapshot of the observability counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Attach records the output the engine's callback is connected to. The
// output is closed by Destroy.
func (e *Engine) Attach(out Output) {
	e.outputMu.Lock()
	e.output = out
	e.outputMu.Unlock()
}

// Resume asks the host output to start producing audible output.
func (e *Engine) Resume() error {
	e.outputMu.Lock()
	out := e.output
	e.outputMu.Unlock()
	if out == nil {
		return nil
	}
	return out.Resume()
}

// IsRunning reports whether the host output is audible.
func (e *Engine) IsRunning() bool {
	e.outputMu.Lock()
	out := e.output
	e.outputMu.Unlock()
	return out != nil && out.IsRunning()
}

// Reset re-initialises the read cursor and backoff state and re-acquires the
// buffer view. It waits for an in-flight callback to finish.
func (e *Engine) Reset() {
	if e.destroyed.Load() {
		return
	}
	for !e.busy.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	defer e.busy.Store(false)
	if e.destroyed.Load() {
		return
	}

	e.readCursor = 0
	e.pacer.reset(e.opts.Now())
	e.shaper.Reset()
	e.view = acquire(e.src, e.capacity)
	e.writeCursor = e.pollWriteCursor()
	e.publish()
}

// Destroy disconnects the engine from its output, waits for an in-flight
// callback to finish and releases the buffer view. Later callbacks are
// dropped. Destroy is safe to call more than once.
func (e *Engine) Destroy() error {
	e.outputMu.Lock()
	out := e.output
	e.output = nil
	e.outputMu.Unlock()

	var err error
	if out != nil {
		err = out.Close()
	}

	if e.destroyed.Swap(true) {
		return err
	}

	// The guard is never released again
	for !e.busy.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
	e.view.release()
	e.readCursor = 0
	e.writeCursor = 0
	e.pacer.reset(e.opts.Now())
	e.publish()
	return err
}
