package engine

import (
	"time"

	simcore "github.com/user-none/corehost/api"
	"github.com/user-none/corehost/linmem"
)

const fakeBase = 1024

// fakeCore is a scripted simulation core backed by a linmem.Memory.
type fakeCore struct {
	mem      *linmem.Memory
	capacity int
	write    int
	steps    int
	events   []string

	// onStep runs inside Step after the step counter is bumped
	onStep func(c *fakeCore)
}

func newFakeCore(capacity int) *fakeCore {
	pages := uint32((fakeBase+2*capacity)/linmem.PageSize + 1)
	return &fakeCore{
		mem:      linmem.New(pages),
		capacity: capacity,
	}
}

func (c *fakeCore) Step() {
	c.steps++
	c.events = append(c.events, "step")
	if c.onStep != nil {
		c.onStep(c)
	}
}

func (c *fakeCore) BufferBaseAddress() uint32 {
	c.events = append(c.events, "base")
	return fakeBase
}

func (c *fakeCore) WriteCursor() int         { return c.write }
func (c *fakeCore) BufferCapacity() int      { return c.capacity }
func (c *fakeCore) Memory() simcore.Memory   { return c.mem }
func (c *fakeCore) resetEvents()             { c.events = c.events[:0] }
func (c *fakeCore) grow()                    { c.mem.Grow(1) }
func (c *fakeCore) setSample(i int, v int16) { c.mem.WriteUint16Le(uint32(fakeBase+2*i), uint16(v)) }

// produce writes frames stereo frames of (l, r) at the write cursor.
func (c *fakeCore) produce(frames int, l, r int16) {
	for range frames {
		c.setSample(c.write, l)
		c.setSample(c.write+1, r)
		c.write = (c.write + 2) % c.capacity
	}
}

// producer returns an onStep script writing frames per step.
func producer(frames int, l, r int16) func(*fakeCore) {
	return func(c *fakeCore) { c.produce(frames, l, r) }
}

// stepOnlyCore has no sample buffer accessor.
type stepOnlyCore struct{}

func (stepOnlyCore) Step() {}

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeOutput struct {
	running bool
	closed  int
	resumed int
}

func (o *fakeOutput) Resume() error   { o.resumed++; o.running = true; return nil }
func (o *fakeOutput) IsRunning() bool { return o.running }
func (o *fakeOutput) Close() error    { o.closed++; o.running = false; return nil }

func newTestEngine(core *fakeCore, clock *fakeClock, opts Options) *Engine {
	opts.Now = clock.Now
	e, err := New(core, opts)
	if err != nil {
		panic(err)
	}
	return e
}

func fill(buf []float32, v float32) {
	for i := range buf {
		buf[i] = v
	}
}
