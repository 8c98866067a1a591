// Package democore is a self-contained simulation core that synthesizes a
// tone into a circular sample buffer. It needs no WebAssembly module and is
// used for demos and tests of the audio path.
package democore

import (
	"math"
	"sync/atomic"

	simcore "github.com/user-none/corehost/api"
	"github.com/user-none/corehost/linmem"
)

// BaseAddress is where the sample buffer starts in the core's memory.
const BaseAddress = 4096

// ButtonBurst, when held by player 0, replaces the tone with a full-scale
// square wave.
const ButtonBurst uint32 = 1 << 0

const toneAmplitude = 0.5 * math.MaxInt16

// Config describes the synthesized signal.
type Config struct {
	SampleRate    int
	FramesPerStep int // stereo frames written per Step
	Capacity      int // buffer size in samples, must be even
	ToneHz        float64
	// GrowEvery grows memory by one page every N steps. Zero disables.
	GrowEvery int
}

// DefaultConfig is a 440Hz tone at 60 steps per second.
func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		FramesPerStep: 735,
		Capacity:      16384,
		ToneHz:        440,
	}
}

// Core writes a tone into a linmem.Memory ring.
type Core struct {
	cfg   Config
	mem   *linmem.Memory
	write int
	phase float64
	delta float64
	steps int

	buttons atomic.Uint32
}

// New creates a demo core. Zero config fields take DefaultConfig values.
func New(cfg Config) *Core {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.FramesPerStep <= 0 {
		cfg.FramesPerStep = def.FramesPerStep
	}
	if cfg.Capacity <= 0 || cfg.Capacity%2 != 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.ToneHz <= 0 {
		cfg.ToneHz = def.ToneHz
	}

	bytes := BaseAddress + 2*cfg.Capacity
	pages := uint32((bytes + linmem.PageSize - 1) / linmem.PageSize)
	return &Core{
		cfg:   cfg,
		mem:   linmem.New(pages),
		delta: 2 * math.Pi * cfg.ToneHz / float64(cfg.SampleRate),
	}
}

// Step writes FramesPerStep frames and advances the write cursor.
func (c *Core) Step() {
	burst := c.buttons.Load()&ButtonBurst != 0
	for range c.cfg.FramesPerStep {
		var v int16
		if burst {
			v = math.MaxInt16
			if math.Sin(c.phase) < 0 {
				v = math.MinInt16
			}
		} else {
			v = int16(toneAmplitude * math.Sin(c.phase))
		}
		c.phase += c.delta
		if c.phase >= 2*math.Pi {
			c.phase -= 2 * math.Pi
		}

		off := uint32(BaseAddress + 2*c.write)
		c.mem.WriteUint16Le(off, uint16(v))
		c.mem.WriteUint16Le(off+2, uint16(v))
		c.write = (c.write + 2) % c.cfg.Capacity
	}

	c.steps++
	if c.cfg.GrowEvery > 0 && c.steps%c.cfg.GrowEvery == 0 {
		c.mem.Grow(1)
	}
}

// SetInput latches the button mask. Only player 0 is used.
func (c *Core) SetInput(player int, buttons uint32) {
	if player != 0 {
		return
	}
	c.buttons.Store(buttons)
}

// BufferBaseAddress returns the byte offset of the sample ring in Memory.
func (c *Core) BufferBaseAddress() uint32 {
	return BaseAddress
}

// WriteCursor returns the next sample index Step will write.
func (c *Core) WriteCursor() int {
	return c.write
}

// BufferCapacity returns the ring size in samples.
func (c *Core) BufferCapacity() int {
	return c.cfg.Capacity
}

// Memory returns the linear memory holding the ring. Growth reallocates its
// storage, which detaches views read before it.
func (c *Core) Memory() simcore.Memory {
	return c.mem
}

// Steps returns the number of steps run.
func (c *Core) Steps() int {
	return c.steps
}
