package output

import (
	"fmt"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// BeepDevice plays audio through the beep speaker. The speaker mixes in
// float64, so the callback output is widened on the way out.
type BeepDevice struct {
	opts   Options
	state  *state
	frames frameBuffer
	cb     Callback

	// guards the speaker between Start and Close
	mu sync.Mutex
}

// NewBeepDevice creates an unstarted beep device.
func NewBeepDevice(opts Options) *BeepDevice {
	opts = opts.withDefaults()
	return &BeepDevice{
		opts:   opts,
		state:  newState(opts.RequireGesture),
		frames: newFrameBuffer(opts.BufferSize),
	}
}

func (d *BeepDevice) Start(cb Callback) error {
	if err := d.state.begin(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := speaker.Init(beep.SampleRate(d.opts.SampleRate), d.opts.BufferSize); err != nil {
		d.state.started.Store(false)
		return fmt.Errorf("beep speaker not available: %w", err)
	}
	d.cb = cb
	speaker.Play(&beepStreamer{d: d})
	return nil
}

func (d *BeepDevice) Resume() error {
	return d.state.resume()
}

func (d *BeepDevice) IsRunning() bool {
	return d.state.running()
}

func (d *BeepDevice) Close() error {
	if !d.state.finish() {
		return nil
	}
	if !d.state.started.Load() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	speaker.Clear()
	speaker.Close()
	return nil
}

// beepStreamer is the beep.Streamer the speaker pulls from.
type beepStreamer struct {
	d *BeepDevice
}

func (s *beepStreamer) Stream(samples [][2]float64) (int, bool) {
	d := s.d
	if d.state.closed.Load() {
		return 0, false
	}
	left, right := render(d.cb, d.state, &d.frames, len(samples))
	for i := range samples {
		samples[i][0] = float64(left[i])
		samples[i][1] = float64(right[i])
	}
	return len(samples), true
}

func (s *beepStreamer) Err() error {
	return nil
}
