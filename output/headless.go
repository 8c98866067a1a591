package output

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// HeadlessDevice drives the callback from a ticker at the real-time rate of
// one buffer per period and discards the audio. It is used where no sound
// hardware is available and in tests.
type HeadlessDevice struct {
	opts   Options
	state  *state
	frames frameBuffer
	cb     Callback

	// serializes the ticker goroutine and Pump
	mu sync.Mutex

	delivered atomic.Int64
	peakBits  atomic.Uint32

	stop chan struct{}
	done chan struct{}
}

// NewHeadlessDevice creates an unstarted headless device.
func NewHeadlessDevice(opts Options) *HeadlessDevice {
	opts = opts.withDefaults()
	return &HeadlessDevice{
		opts:   opts,
		state:  newState(opts.RequireGesture),
		frames: newFrameBuffer(opts.BufferSize),
	}
}

// Period returns the time covered by one callback.
func (d *HeadlessDevice) Period() time.Duration {
	return time.Duration(d.opts.BufferSize) * time.Second / time.Duration(d.opts.SampleRate)
}

func (d *HeadlessDevice) Start(cb Callback) error {
	if err := d.state.begin(); err != nil {
		return err
	}
	d.cb = cb
	if d.opts.Manual {
		return nil
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(time.NewTicker(d.Period()))
	return nil
}

func (d *HeadlessDevice) run(ticker *time.Ticker) {
	defer close(d.done)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *HeadlessDevice) tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	left, right := render(d.cb, d.state, &d.frames, d.opts.BufferSize)
	d.delivered.Add(int64(len(left)))

	var peak float32
	for i := range left {
		peak = max(peak, abs32(left[i]), abs32(right[i]))
	}
	d.peakBits.Store(math.Float32bits(peak))
}

// Pump runs n callbacks synchronously on the calling goroutine.
func (d *HeadlessDevice) Pump(n int) error {
	if d.state.closed.Load() {
		return ErrDeviceClosed
	}
	if !d.state.started.Load() {
		return ErrNotStarted
	}
	for range n {
		d.tick()
	}
	return nil
}

// Frames returns the number of frames delivered to the host so far.
func (d *HeadlessDevice) Frames() int64 {
	return d.delivered.Load()
}

// Peak returns the absolute peak of the last buffer as heard by the host.
func (d *HeadlessDevice) Peak() float32 {
	return math.Float32frombits(d.peakBits.Load())
}

func (d *HeadlessDevice) Resume() error {
	return d.state.resume()
}

func (d *HeadlessDevice) IsRunning() bool {
	return d.state.running()
}

func (d *HeadlessDevice) Close() error {
	if !d.state.finish() {
		return nil
	}
	if d.stop != nil {
		close(d.stop)
		<-d.done
	}
	return nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
