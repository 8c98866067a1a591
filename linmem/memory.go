// Package linmem provides a growable linear memory with the same access
// semantics as a WebAssembly memory: growing reallocates the backing
// storage, so slices returned by Read before the growth no longer alias it.
package linmem

import (
	"encoding/binary"
	"sync"
)

// PageSize is the WebAssembly page size in bytes.
const PageSize = 65536

// MaxPages bounds growth to 4GiB, the 32-bit address space.
const MaxPages = 65536

// Memory is a little-endian byte-addressable linear memory.
// It satisfies simcore.Memory.
type Memory struct {
	mu   sync.RWMutex
	data []byte
}

// New creates a memory of the given number of pages.
func New(pages uint32) *Memory {
	if pages > MaxPages {
		pages = MaxPages
	}
	return &Memory{data: make([]byte, int(pages)*PageSize)}
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	m.mu.RLock()
	n := len(m.data)
	m.mu.RUnlock()
	return uint32(n)
}

// Read returns a slice of byteCount bytes at offset. The slice aliases the
// current backing storage until the next Grow.
func (m *Memory) Read(offset, byteCount uint32) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.inRange(offset, uint64(byteCount)) {
		return nil, false
	}
	return m.data[offset : offset+byteCount : offset+byteCount], true
}

// Grow adds deltaPages pages and returns the previous size in pages.
// The backing storage is always reallocated, even for a zero delta, so
// existing views are left pointing at stale storage.
func (m *Memory) Grow(deltaPages uint32) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := uint32(len(m.data) / PageSize)
	if uint64(prev)+uint64(deltaPages) > MaxPages {
		return prev, false
	}
	grown := make([]byte, int(prev+deltaPages)*PageSize)
	copy(grown, m.data)
	m.data = grown
	return prev, true
}

// ReadUint16Le reads a little-endian uint16 at offset.
func (m *Memory) ReadUint16Le(offset uint32) (uint16, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.inRange(offset, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.data[offset:]), true
}

// WriteUint16Le writes a little-endian uint16 at offset.
func (m *Memory) WriteUint16Le(offset uint32, v uint16) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.inRange(offset, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.data[offset:], v)
	return true
}

func (m *Memory) inRange(offset uint32, n uint64) bool {
	return uint64(offset)+n <= uint64(len(m.data))
}
