package engine

import (
	"time"
)

// Default pacing parameters.
const (
	DefaultSampleRate        = 44100
	DefaultCapacity          = 16384 // samples, 8192 stereo frames
	DefaultLowWaterMark      = 0.15
	DefaultMaxStepsPerSecond = 90
	DefaultBackoffCallbacks  = 2
	DefaultStatsWindow       = 10 * time.Second
)

// Options configures an Engine. Zero fields take their defaults.
type Options struct {
	// Capacity is the sample buffer size in samples, used when the core
	// does not report one. Must be even.
	Capacity int

	// SampleRate of the output stage in Hz. Drives compressor timing.
	SampleRate int

	// LowWaterMark is the fill level below which one catch-up step is run.
	LowWaterMark float64

	// MaxStepsPerSecond caps catch-up stepping within each 1-second window.
	MaxStepsPerSecond int

	// BackoffCallbacks is the number of callbacks that output silence and
	// skip stepping after an underrun. Negative disables backoff.
	BackoffCallbacks int

	// StatsWindow is the period after which skip and clip counts reset.
	StatsWindow time.Duration

	// OnCallback, if set, runs at the start of every processed callback
	// before any stepping. It must not block.
	OnCallback func()

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.LowWaterMark <= 0 || o.LowWaterMark >= 1 {
		o.LowWaterMark = DefaultLowWaterMark
	}
	if o.MaxStepsPerSecond <= 0 {
		o.MaxStepsPerSecond = DefaultMaxStepsPerSecond
	}
	if o.BackoffCallbacks == 0 {
		o.BackoffCallbacks = DefaultBackoffCallbacks
	} else if o.BackoffCallbacks < 0 {
		o.BackoffCallbacks = 0
	}
	if o.StatsWindow <= 0 {
		o.StatsWindow = DefaultStatsWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
