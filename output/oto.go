package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// bytesPerFrame is two float32 channels.
const bytesPerFrame = 8

// oto allows one context per process
var (
	otoCtx      *oto.Context
	otoInitOnce sync.Once
	otoInitErr  error
	otoRate     int
)

// ensureOtoContext initializes the oto audio context on first use. Later
// calls must ask for the same sample rate.
func ensureOtoContext(sampleRate, bufferSize int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
		}
		var readyChan chan struct{}
		otoCtx, readyChan, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		otoRate = sampleRate
		<-readyChan
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already running at %d Hz", otoRate)
	}
	return otoCtx, nil
}

// OtoDevice plays audio through an oto pull-model player. oto decides how
// many bytes each Read asks for; the callback is run once per Read.
type OtoDevice struct {
	opts   Options
	state  *state
	frames frameBuffer
	cb     Callback

	mu     sync.Mutex
	player *oto.Player
}

// NewOtoDevice creates an unstarted oto device.
func NewOtoDevice(opts Options) *OtoDevice {
	opts = opts.withDefaults()
	return &OtoDevice{
		opts:   opts,
		state:  newState(opts.RequireGesture),
		frames: newFrameBuffer(opts.BufferSize),
	}
}

func (d *OtoDevice) Start(cb Callback) error {
	if err := d.state.begin(); err != nil {
		return err
	}
	ctx, err := ensureOtoContext(d.opts.SampleRate, d.opts.BufferSize)
	if err != nil {
		d.state.started.Store(false)
		return fmt.Errorf("oto audio not available: %w", err)
	}

	d.cb = cb
	player := ctx.NewPlayer(&otoReader{d: d})
	player.SetBufferSize(d.opts.BufferSize * bytesPerFrame)
	player.Play()

	d.mu.Lock()
	d.player = player
	d.mu.Unlock()
	return nil
}

func (d *OtoDevice) Resume() error {
	return d.state.resume()
}

func (d *OtoDevice) IsRunning() bool {
	return d.state.running()
}

func (d *OtoDevice) Close() error {
	if !d.state.finish() {
		return nil
	}
	d.mu.Lock()
	player := d.player
	d.player = nil
	d.mu.Unlock()
	if player == nil {
		return nil
	}
	player.Pause()
	return player.Close()
}

// otoReader adapts the callback to the io.Reader oto pulls from. Reads
// always end on a frame boundary unless p is shorter than a frame; the rest
// of that frame is held in pending and delivered first on the next Read.
type otoReader struct {
	d       *OtoDevice
	partial [bytesPerFrame]byte
	pending []byte
}

func (r *otoReader) Read(p []byte) (int, error) {
	d := r.d
	if d.state.closed.Load() {
		return 0, io.EOF
	}

	written := copy(p, r.pending)
	r.pending = r.pending[written:]
	p = p[written:]
	if len(p) == 0 {
		return written, nil
	}

	n := len(p) / bytesPerFrame
	if n == 0 {
		left, right := render(d.cb, d.state, &d.frames, 1)
		encodeFloat32LE(r.partial[:], left, right)
		c := copy(p, r.partial[:])
		r.pending = r.partial[c:]
		return written + c, nil
	}
	left, right := render(d.cb, d.state, &d.frames, n)
	encodeFloat32LE(p, left, right)
	return written + n*bytesPerFrame, nil
}

// encodeFloat32LE interleaves left and right into dst as little-endian
// float32 pairs. dst must hold len(left)*8 bytes.
func encodeFloat32LE(dst []byte, left, right []float32) {
	for i := range left {
		off := i * bytesPerFrame
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(left[i]))
		binary.LittleEndian.PutUint32(dst[off+4:], math.Float32bits(right[i]))
	}
}
