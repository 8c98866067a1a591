package engine

import (
	"encoding/binary"

	simcore "github.com/user-none/corehost/api"
)

// sampleScale maps signed 16-bit samples to [-1, 1). +32767 maps to
// 0.999969..., not 1.0.
const sampleScale = 32768.0

// BufferView is a borrowed view of the core's circular sample buffer.
// It becomes invalid when the core's memory is reallocated.
type BufferView struct {
	mem      simcore.Memory
	data     []byte
	memSize  uint32
	capacity int
}

// acquire builds a view over capacity samples at the core's current base
// address. An out of range region yields an invalid view.
func acquire(src simcore.SampleSource, capacity int) BufferView {
	mem := src.Memory()
	if mem == nil {
		return BufferView{capacity: capacity}
	}
	size := mem.Size()
	data, ok := mem.Read(src.BufferBaseAddress(), uint32(capacity*2))
	if !ok {
		data = nil
	}
	return BufferView{
		mem:      mem,
		data:     data,
		memSize:  size,
		capacity: capacity,
	}
}

// ByteLen returns the number of bytes the view covers. It is zero when the
// view was never bound or the memory has been reallocated since.
func (v *BufferView) ByteLen() int {
	if v.mem == nil || len(v.data) == 0 {
		return 0
	}
	if v.mem.Size() != v.memSize {
		return 0
	}
	return len(v.data)
}

// Valid reports whether the view can be read.
func (v *BufferView) Valid() bool {
	return v.ByteLen() != 0
}

// ReadFrame returns the normalized stereo pair at cursor and cursor+1.
// Reads outside the bound region return silence.
func (v *BufferView) ReadFrame(cursor int) (left, right float64) {
	off := cursor * 2
	if cursor < 0 || off+4 > len(v.data) {
		return 0, 0
	}
	l := int16(binary.LittleEndian.Uint16(v.data[off:]))
	r := int16(binary.LittleEndian.Uint16(v.data[off+2:]))
	return float64(l) / sampleScale, float64(r) / sampleScale
}

// release drops the reference to the core's memory.
func (v *BufferView) release() {
	v.mem = nil
	v.data = nil
	v.memSize = 0
}
