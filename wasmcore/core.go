// Package wasmcore runs a simulation core compiled to WebAssembly with
// wazero. The module's linear memory is handed to the engine directly, so
// samples are read from the module without copying.
package wasmcore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	simcore "github.com/user-none/corehost/api"
)

// ErrMissingExport is returned when the module lacks a required export.
var ErrMissingExport = errors.New("module is missing a required export")

// Exports names the functions the host calls on the module.
type Exports struct {
	Step              string // () -> ()
	BufferBaseAddress string // () -> i32
	WriteCursor       string // () -> i32
	BufferCapacity    string // () -> i32, optional
	SetInput          string // (i32 player, i32 buttons) -> (), optional
}

// DefaultExports returns the export names used by the reference cores.
func DefaultExports() Exports {
	return Exports{
		Step:              "step",
		BufferBaseAddress: "getBufferBaseAddress",
		WriteCursor:       "getWriteCursor",
		BufferCapacity:    "getBufferCapacity",
		SetInput:          "setInput",
	}
}

// Core is a WebAssembly module that can be stepped. It implements
// simcore.Core, simcore.InputSetter and simcore.Closer.
type Core struct {
	ctx     context.Context
	runtime wazero.Runtime
	mod     api.Module

	step     api.Function
	setInput api.Function
	stack    []uint64

	failed atomic.Bool
	errMu  sync.Mutex
	err    error
}

// BufferedCore is a Core that also exposes its sample buffer.
type BufferedCore struct {
	*Core

	base     api.Function
	cursor   api.Function
	capacity api.Function
}

// Load compiles and instantiates image. The returned core is a
// *BufferedCore when the module exports the buffer accessors and a *Core
// otherwise.
func Load(ctx context.Context, image []byte, exports Exports) (simcore.Core, error) {
	r := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := r.CompileModule(ctx, image)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to compile module: %w", err)
	}

	// Reactor modules are initialised explicitly below
	cfg := wazero.NewModuleConfig().
		WithStartFunctions().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)
	mod, err := r.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module: %w", err)
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			r.Close(ctx)
			return nil, fmt.Errorf("_initialize: %w", err)
		}
	}

	step := mod.ExportedFunction(exports.Step)
	if step == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: %q", ErrMissingExport, exports.Step)
	}

	c := &Core{
		ctx:      ctx,
		runtime:  r,
		mod:      mod,
		step:     step,
		setInput: lookup(mod, exports.SetInput),
		stack:    make([]uint64, 2),
	}

	base := lookup(mod, exports.BufferBaseAddress)
	cursor := lookup(mod, exports.WriteCursor)
	if base == nil || cursor == nil {
		return c, nil
	}
	return &BufferedCore{
		Core:     c,
		base:     base,
		cursor:   cursor,
		capacity: lookup(mod, exports.BufferCapacity),
	}, nil
}

func lookup(mod api.Module, name string) api.Function {
	if name == "" {
		return nil
	}
	return mod.ExportedFunction(name)
}

// Step runs the step export. After the first failure Step does nothing;
// the failure is reported by Err.
func (c *Core) Step() {
	if c.failed.Load() {
		return
	}
	if err := c.step.CallWithStack(c.ctx, c.stack); err != nil {
		c.fail(fmt.Errorf("step: %w", err))
	}
}

// SetInput forwards controller state if the module accepts it.
func (c *Core) SetInput(player int, buttons uint32) {
	if c.setInput == nil || c.failed.Load() {
		return
	}
	c.stack[0] = api.EncodeI32(int32(player))
	c.stack[1] = api.EncodeU32(buttons)
	if err := c.setInput.CallWithStack(c.ctx, c.stack); err != nil {
		c.fail(fmt.Errorf("set input: %w", err))
	}
}

// Err returns the first error raised by the module, if any.
func (c *Core) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Core) fail(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
	c.failed.Store(true)
}

// Close releases the wazero runtime and everything it compiled.
func (c *Core) Close() error {
	return c.runtime.Close(c.ctx)
}

// Module returns the instantiated module.
func (c *Core) Module() api.Module {
	return c.mod
}

func (c *Core) callI32(fn api.Function) int32 {
	if fn == nil || c.failed.Load() {
		return 0
	}
	if err := fn.CallWithStack(c.ctx, c.stack); err != nil {
		c.fail(err)
		return 0
	}
	return api.DecodeI32(c.stack[0])
}

func (b *BufferedCore) BufferBaseAddress() uint32 {
	return uint32(b.callI32(b.base))
}

func (b *BufferedCore) WriteCursor() int {
	return int(b.callI32(b.cursor))
}

func (b *BufferedCore) BufferCapacity() int {
	return int(b.callI32(b.capacity))
}

func (b *BufferedCore) Memory() simcore.Memory {
	mem := b.mod.Memory()
	if mem == nil {
		return nil
	}
	return mem
}
