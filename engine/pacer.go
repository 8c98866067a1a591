package engine

import "time"

// PacerState is the scheduling state of the pacer.
type PacerState int

const (
	StateNormal PacerState = iota
	StateBackoff
)

// String returns the display name of the state.
func (s PacerState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// pacer decides how many simulation steps run per callback. Every callback
// runs one baseline step; a low buffer earns one catch-up step as long as the
// per-second step budget has not reached its cap. After an underrun the pacer
// backs off for a fixed number of callbacks.
type pacer struct {
	lowWaterMark float64
	maxSteps     int
	backoffLen   int

	backoff     int
	budget      int
	windowStart time.Time
}

func newPacer(opts Options, now time.Time) pacer {
	return pacer{
		lowWaterMark: opts.LowWaterMark,
		maxSteps:     opts.MaxStepsPerSecond,
		backoffLen:   opts.BackoffCallbacks,
		windowStart:  now,
	}
}

func (p *pacer) state() PacerState {
	if p.backoff > 0 {
		return StateBackoff
	}
	return StateNormal
}

// rollWindow starts a new 1-second accounting window if the current one has
// elapsed. It returns the finished window's step count and true on a roll.
func (p *pacer) rollWindow(now time.Time) (int, bool) {
	if now.Sub(p.windowStart) < time.Second {
		return 0, false
	}
	steps := p.budget
	p.budget = 0
	p.windowStart = now
	return steps, true
}

// consumeBackoff reports whether this callback is spent backing off.
func (p *pacer) consumeBackoff() bool {
	if p.backoff <= 0 {
		return false
	}
	p.backoff--
	return true
}

func (p *pacer) recordStep() {
	p.budget++
}

// wantCatchUp reports whether a second step should run for this fill level.
func (p *pacer) wantCatchUp(fill float64) bool {
	return fill < p.lowWaterMark && p.budget < p.maxSteps
}

// noteUnderrun enters backoff unless already backing off.
func (p *pacer) noteUnderrun() {
	if p.backoff == 0 {
		p.backoff = p.backoffLen
	}
}

func (p *pacer) reset(now time.Time) {
	p.backoff = 0
	p.budget = 0
	p.windowStart = now
}

// circularDistance returns the forward distance from read to write in a
// buffer of the given capacity.
func circularDistance(read, write, capacity int) int {
	d := (write - read) % capacity
	if d < 0 {
		d += capacity
	}
	return d
}

// fillLevel returns the fraction of the buffer between read and write.
func fillLevel(read, write, capacity int) float64 {
	return float64(circularDistance(read, write, capacity)) / float64(capacity)
}

// wrapCursor normalizes any cursor value into [0, capacity).
func wrapCursor(c, capacity int) int {
	c %= capacity
	if c < 0 {
		c += capacity
	}
	return c
}
