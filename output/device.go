// Package output connects an audio callback to a host audio device.
//
// Every device pulls audio by invoking a Callback with planar stereo
// buffers. Devices can start withheld: the callback keeps running so the
// simulation advances, but the host hears silence until Resume is called.
package output

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Backend names accepted by New.
const (
	BackendOto      = "oto"
	BackendBeep     = "beep"
	BackendHeadless = "headless"
)

var (
	ErrDeviceClosed   = errors.New("audio device closed")
	ErrAlreadyStarted = errors.New("audio device already started")
	ErrNotStarted     = errors.New("audio device not started")
	ErrUnknownBackend = errors.New("unknown audio backend")
)

// Callback fills left and right with normalized samples. It runs on the
// device's audio thread and must not block.
type Callback func(left, right []float32)

// Device is a host audio output.
type Device interface {
	// Start connects cb to the device and begins pulling audio.
	Start(cb Callback) error
	// Resume makes the output audible.
	Resume() error
	// IsRunning reports whether the device is started, audible and open.
	IsRunning() bool
	// Close disconnects the callback and releases the device.
	Close() error
}

// Options configures a device.
type Options struct {
	SampleRate int
	// BufferSize is the requested callback size in frames.
	BufferSize int
	// RequireGesture starts the device withheld until Resume.
	RequireGesture bool
	// Manual disables the headless device's clock. Callbacks then only
	// run through Pump.
	Manual bool
}

const (
	defaultSampleRate = 44100
	defaultBufferSize = 1024
)

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = defaultSampleRate
	}
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	return o
}

// New creates a device for the named backend.
func New(backend string, opts Options) (Device, error) {
	switch backend {
	case BackendOto, "":
		return NewOtoDevice(opts), nil
	case BackendBeep:
		return NewBeepDevice(opts), nil
	case BackendHeadless:
		return NewHeadlessDevice(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// state tracks the lifecycle flags shared by all devices.
type state struct {
	started atomic.Bool
	closed  atomic.Bool
	audible atomic.Bool
}

func newState(requireGesture bool) *state {
	s := &state{}
	s.audible.Store(!requireGesture)
	return s
}

// begin marks the device started, failing if it is closed or already
// running.
func (s *state) begin() error {
	if s.closed.Load() {
		return ErrDeviceClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	return nil
}

func (s *state) resume() error {
	if s.closed.Load() {
		return ErrDeviceClosed
	}
	if !s.started.Load() {
		return ErrNotStarted
	}
	s.audible.Store(true)
	return nil
}

func (s *state) running() bool {
	return s.started.Load() && s.audible.Load() && !s.closed.Load()
}

// finish marks the device closed and reports whether this call did so.
func (s *state) finish() bool {
	return s.closed.CompareAndSwap(false, true)
}

// frameBuffer holds the planar buffers handed to the callback. They are
// sized up front and only grow if the host asks for more frames than
// expected.
type frameBuffer struct {
	left  []float32
	right []float32
}

func newFrameBuffer(frames int) frameBuffer {
	return frameBuffer{
		left:  make([]float32, frames),
		right: make([]float32, frames),
	}
}

func (b *frameBuffer) get(frames int) ([]float32, []float32) {
	if cap(b.left) < frames {
		b.left = make([]float32, frames)
		b.right = make([]float32, frames)
	}
	return b.left[:frames], b.right[:frames]
}

// render runs cb over frames and withholds the result when the output is
// not audible.
func render(cb Callback, s *state, buf *frameBuffer, frames int) ([]float32, []float32) {
	left, right := buf.get(frames)
	clear(left)
	clear(right)
	if cb != nil {
		cb(left, right)
	}
	if !s.audible.Load() {
		clear(left)
		clear(right)
	}
	return left, right
}
