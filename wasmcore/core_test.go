package wasmcore

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	simcore "github.com/user-none/corehost/api"
	"github.com/user-none/corehost/engine"
)

// Test module layout:
//
//	func 0 step: writes (1000, 1000) at the cursor, cursor = (cursor+2) % 64
//	func 1 getBufferBaseAddress: 1024
//	func 2 getWriteCursor: cursor
//	func 3 getBufferCapacity: 64
//	func 4 growMemory: grows memory by one page
//	func 5 trap: unreachable
func testModule() []byte {
	m := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	// types: 0 = () -> (), 1 = () -> i32
	m = append(m, section(0x01, 0x02,
		0x60, 0x00, 0x00,
		0x60, 0x00, 0x01, 0x7f)...)
	m = append(m, section(0x03, 0x06, 0x00, 0x01, 0x01, 0x01, 0x00, 0x00)...)
	// one page of memory
	m = append(m, section(0x05, 0x01, 0x00, 0x01)...)
	// mutable i32 cursor = 0
	m = append(m, section(0x06, 0x01, 0x7f, 0x01, 0x41, 0x00, 0x0b)...)

	exports := []byte{0x07}
	exports = append(exports, export("memory", 0x02, 0)...)
	exports = append(exports, export("step", 0x00, 0)...)
	exports = append(exports, export("getBufferBaseAddress", 0x00, 1)...)
	exports = append(exports, export("getWriteCursor", 0x00, 2)...)
	exports = append(exports, export("getBufferCapacity", 0x00, 3)...)
	exports = append(exports, export("growMemory", 0x00, 4)...)
	exports = append(exports, export("trap", 0x00, 5)...)
	m = append(m, section(0x07, exports...)...)

	code := []byte{0x06}
	code = append(code, body(
		// left sample at 1024 + cursor*2
		0x23, 0x00, 0x41, 0x01, 0x74, 0x41, 0x80, 0x08, 0x6a,
		0x41, 0xe8, 0x07, 0x3b, 0x01, 0x00,
		// right sample at 1026 + cursor*2
		0x23, 0x00, 0x41, 0x01, 0x74, 0x41, 0x82, 0x08, 0x6a,
		0x41, 0xe8, 0x07, 0x3b, 0x01, 0x00,
		// cursor = (cursor + 2) % 64
		0x23, 0x00, 0x41, 0x02, 0x6a, 0x41, 0xc0, 0x00, 0x70, 0x24, 0x00,
		0x0b)...)
	code = append(code, body(0x41, 0x80, 0x08, 0x0b)...)
	code = append(code, body(0x23, 0x00, 0x0b)...)
	code = append(code, body(0x41, 0xc0, 0x00, 0x0b)...)
	code = append(code, body(0x41, 0x01, 0x40, 0x00, 0x1a, 0x0b)...)
	code = append(code, body(0x00, 0x0b)...)
	return append(m, section(0x0a, code...)...)
}

func section(id byte, payload ...byte) []byte {
	return append([]byte{id, byte(len(payload))}, payload...)
}

func export(name string, kind, index byte) []byte {
	b := append([]byte{byte(len(name))}, name...)
	return append(b, kind, index)
}

func body(code ...byte) []byte {
	b := append([]byte{0x00}, code...) // no locals
	return append([]byte{byte(len(b))}, b...)
}

func loadTestCore(t *testing.T, exports Exports) simcore.Core {
	t.Helper()
	core, err := Load(context.Background(), testModule(), exports)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() {
		if c, ok := core.(simcore.Closer); ok {
			c.Close()
		}
	})
	return core
}

func TestLoad_MissingStep(t *testing.T) {
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	_, err := Load(context.Background(), empty, DefaultExports())
	if !errors.Is(err, ErrMissingExport) {
		t.Fatalf("expected ErrMissingExport, got %v", err)
	}
}

func TestLoad_InvalidImage(t *testing.T) {
	_, err := Load(context.Background(), []byte("not wasm"), DefaultExports())
	if err == nil {
		t.Fatal("expected error for invalid image")
	}
}

func TestLoad_BufferedCore(t *testing.T) {
	core := loadTestCore(t, DefaultExports())

	src, ok := simcore.Source(core)
	if !ok {
		t.Fatalf("expected a buffered core, got %T", core)
	}
	if src.BufferBaseAddress() != 1024 {
		t.Errorf("expected base address 1024, got %d", src.BufferBaseAddress())
	}
	if src.BufferCapacity() != 64 {
		t.Errorf("expected capacity 64, got %d", src.BufferCapacity())
	}
	if src.WriteCursor() != 0 {
		t.Errorf("expected write cursor 0, got %d", src.WriteCursor())
	}

	core.Step()
	if src.WriteCursor() != 2 {
		t.Fatalf("expected write cursor 2 after a step, got %d", src.WriteCursor())
	}

	data, ok := src.Memory().Read(1024, 4)
	if !ok {
		t.Fatal("expected the sample region to be readable")
	}
	if l := int16(binary.LittleEndian.Uint16(data)); l != 1000 {
		t.Errorf("expected left sample 1000, got %d", l)
	}
	if r := int16(binary.LittleEndian.Uint16(data[2:])); r != 1000 {
		t.Errorf("expected right sample 1000, got %d", r)
	}
}

func TestLoad_WithoutBufferAccessors(t *testing.T) {
	exports := DefaultExports()
	exports.WriteCursor = "notExported"
	core := loadTestCore(t, exports)

	if _, ok := simcore.Source(core); ok {
		t.Fatal("expected a core without sample buffer access")
	}
	if _, err := engine.New(core, engine.Options{}); !errors.Is(err, engine.ErrNoBufferAccessor) {
		t.Errorf("expected ErrNoBufferAccessor, got %v", err)
	}
}

func TestCore_StepError(t *testing.T) {
	exports := DefaultExports()
	exports.Step = "trap"
	core := loadTestCore(t, exports)

	c := core.(*BufferedCore)
	c.Step()
	first := c.Err()
	if first == nil {
		t.Fatal("expected a trap to be reported")
	}
	c.Step()
	if c.Err() != first {
		t.Error("expected the first error to be kept")
	}

	// SetInput without an export is a no-op
	c.SetInput(0, 1)
}

func TestCore_WithEngine(t *testing.T) {
	core := loadTestCore(t, DefaultExports())
	e, err := engine.New(core, engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if e.Capacity() != 64 {
		t.Fatalf("expected capacity from the module, got %d", e.Capacity())
	}

	left := make([]float32, 2)
	right := make([]float32, 2)
	e.Process(left, right)
	if left[0] == 0 || right[1] == 0 {
		t.Fatalf("expected audio from the module, got %v %v", left, right)
	}

	// Growing the module's memory detaches the engine's view
	grow := core.(*BufferedCore).Module().ExportedFunction("growMemory")
	if _, err := grow.Call(context.Background()); err != nil {
		t.Fatalf("growMemory: %v", err)
	}
	e.Process(left, right)
	if got := e.Stats().Reacquires; got != 1 {
		t.Errorf("expected 1 re-acquisition after growth, got %d", got)
	}
	e.Process(left, right)
	if left[0] == 0 {
		t.Error("expected audio after re-acquisition")
	}
}
