package simcore

// Core is the interface every simulation core adapter must implement.
type Core interface {
	// Step advances the simulation by one unit. As a side effect the core
	// writes new PCM content into its sample buffer and advances the
	// write cursor. Step must be bounded and synchronous.
	Step()
}

// Memory is a view onto the core's linear memory. The method set matches
// wazero's api.Memory so a WebAssembly module's memory can be used directly.
type Memory interface {
	// Read returns a byteCount slice at offset backed by the core's memory.
	// The slice is only valid until the memory grows.
	Read(offset, byteCount uint32) ([]byte, bool)

	// Size returns the current memory size in bytes.
	Size() uint32
}

// SampleSource exposes the core's circular buffer of interleaved stereo
// signed 16-bit samples.
type SampleSource interface {
	// BufferBaseAddress returns the byte offset of the circular region in
	// Memory. It may be called again after the memory has been reallocated.
	BufferBaseAddress() uint32

	// WriteCursor returns the current write position in samples.
	WriteCursor() int

	// BufferCapacity returns the capacity of the region in samples, or 0
	// if the core does not report it.
	BufferCapacity() int

	// Memory returns the linear memory holding the region.
	Memory() Memory
}

// InputSetter accepts controller state as a button bitmask per player.
type InputSetter interface {
	SetInput(player int, buttons uint32)
}

// Closer releases resources held by the core.
type Closer interface {
	Close() error
}

// Source reports whether core exposes its sample buffer.
func Source(core Core) (SampleSource, bool) {
	if core == nil {
		return nil, false
	}
	src, ok := core.(SampleSource)
	return src, ok
}
