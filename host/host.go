// Package host wires a simulation core, the pacing engine and an audio
// device together and runs them until cancelled.
package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	simcore "github.com/user-none/corehost/api"
	"github.com/user-none/corehost/democore"
	"github.com/user-none/corehost/engine"
	"github.com/user-none/corehost/modloader"
	"github.com/user-none/corehost/output"
	"github.com/user-none/corehost/storage"
	"github.com/user-none/corehost/wasmcore"
)

// ErrNoCore is returned when neither a module nor the demo core was
// requested.
var ErrNoCore = errors.New("no simulation core: pass a module path or use the demo core")

// errPollInterval is how often the core is checked for a fatal error.
const errPollInterval = 100 * time.Millisecond

// Options configures Run.
type Options struct {
	// Config is used as-is when set. Otherwise it is loaded from ConfigPath,
	// or from the data directory when that is empty.
	Config     *storage.Config
	ConfigPath string

	// ModulePath overrides the configured module.
	ModulePath string
	// Demo uses the built-in tone core instead of a module.
	Demo bool

	// Core and Device replace the configured core and audio device.
	Core   simcore.Core
	Device output.Device

	// Stdin carries interactive commands; Stdout receives the status line.
	Stdin  io.Reader
	Stdout io.Writer
}

// errorReporter is implemented by cores that fail asynchronously.
type errorReporter interface {
	Err() error
}

// Run starts the core and audio output and blocks until ctx is done, the
// user quits or the core fails.
func Run(ctx context.Context, opts Options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	core := opts.Core
	if core == nil {
		core, err = buildCore(ctx, cfg, opts)
		if err != nil {
			return err
		}
	}
	if c, ok := core.(simcore.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Printf("Warning: failed to close core: %v", err)
			}
		}()
	}

	latch := NewInputLatch(core)
	eng, err := engine.New(core, engineOptions(cfg, latch))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	eng.SetVolume(cfg.Audio.Volume)
	eng.SetMuted(cfg.Audio.Muted)

	dev := opts.Device
	if dev == nil {
		dev, err = output.New(cfg.Audio.Backend, output.Options{
			SampleRate:     cfg.Audio.SampleRate,
			BufferSize:     cfg.Audio.BufferSize,
			RequireGesture: cfg.Audio.RequireGesture,
		})
		if err != nil {
			return err
		}
	}

	eng.Attach(dev)
	defer func() {
		if err := eng.Destroy(); err != nil {
			log.Printf("Warning: failed to close audio device: %v", err)
		}
		log.Printf("Stopped after %d callbacks", eng.Stats().Callbacks)
	}()
	if err := dev.Start(eng.Process); err != nil {
		return fmt.Errorf("failed to start audio: %w", err)
	}
	log.Printf("Audio started: backend=%s rate=%d buffer=%d capacity=%d",
		cfg.Audio.Backend, cfg.Audio.SampleRate, cfg.Audio.BufferSize, eng.Capacity())

	interactive := isTerminal(opts.Stdin)
	if cfg.Audio.RequireGesture {
		if interactive {
			fmt.Fprintln(opts.Stdout, "Press Enter to start audio")
		} else {
			// Nobody can make a gesture on a pipe
			resume(eng)
		}
	}

	commands := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go readCommands(opts.Stdin, commands, done)

	var report <-chan time.Time
	if cfg.Stats.ReportIntervalSeconds > 0 {
		t := time.NewTicker(time.Duration(cfg.Stats.ReportIntervalSeconds) * time.Second)
		defer t.Stop()
		report = t.C
	}
	poll := time.NewTicker(errPollInterval)
	defer poll.Stop()

	status := newStatusLine(isTerminal(opts.Stdout))
	reporter, _ := core.(errorReporter)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-report:
			line := status.Render(eng.Stats(), eng.Volume(), eng.Muted())
			if status.styled {
				fmt.Fprintln(opts.Stdout, line)
			} else {
				log.Printf("Stats: %s", line)
			}
		case <-poll.C:
			if reporter != nil {
				if err := reporter.Err(); err != nil {
					return fmt.Errorf("simulation core failed: %w", err)
				}
			}
		case cmd := <-commands:
			if !handleCommand(cmd, eng, latch) {
				return nil
			}
		}
	}
}

func resolveConfig(opts Options) (*storage.Config, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error
		if opts.ConfigPath != "" {
			cfg, err = storage.LoadConfigFrom(opts.ConfigPath)
		} else {
			cfg, err = storage.LoadConfig()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	for _, p := range storage.ValidateConfig(cfg) {
		log.Printf("Warning: invalid config value %s, using default", p)
	}
	return storage.CorrectConfig(cfg), nil
}

func buildCore(ctx context.Context, cfg *storage.Config, opts Options) (simcore.Core, error) {
	if opts.Demo {
		return democore.New(democore.Config{
			SampleRate: cfg.Audio.SampleRate,
			Capacity:   cfg.Core.BufferCapacity,
		}), nil
	}

	path := opts.ModulePath
	if path == "" {
		path = cfg.Core.Module
	}
	if path == "" {
		return nil, ErrNoCore
	}

	img, err := modloader.Load(path, modloader.Options{Entry: cfg.Core.Entry})
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	log.Printf("Loaded %s (%s, %d bytes)", img.Name, img.Container, len(img.Data))

	core, err := wasmcore.Load(ctx, img.Data, wasmcore.Exports{
		Step:              cfg.Core.StepExport,
		BufferBaseAddress: cfg.Core.BaseAddressExport,
		WriteCursor:       cfg.Core.WriteCursorExport,
		BufferCapacity:    cfg.Core.CapacityExport,
		SetInput:          cfg.Core.InputExport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start module %s: %w", img.Name, err)
	}
	return core, nil
}

func engineOptions(cfg *storage.Config, latch *InputLatch) engine.Options {
	backoff := cfg.Pacing.BackoffCallbacks
	if backoff == 0 {
		backoff = -1
	}
	return engine.Options{
		Capacity:          cfg.Core.BufferCapacity,
		SampleRate:        cfg.Audio.SampleRate,
		LowWaterMark:      cfg.Pacing.LowWaterMark,
		MaxStepsPerSecond: cfg.Pacing.MaxStepsPerSecond,
		BackoffCallbacks:  backoff,
		StatsWindow:       time.Duration(cfg.Stats.WindowSeconds) * time.Second,
		OnCallback:        latch.Apply,
	}
}

func resume(eng *engine.Engine) {
	if err := eng.Resume(); err != nil {
		log.Printf("Warning: failed to resume audio: %v", err)
	}
}

// readCommands forwards trimmed input lines until r is exhausted or done
// is closed.
func readCommands(r io.Reader, out chan<- string, done <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case out <- strings.TrimSpace(scanner.Text()):
		case <-done:
			return
		}
	}
}

// handleCommand applies one interactive command and reports whether the
// host should keep running.
//
//	(empty)  start audio
//	m        toggle mute
//	+ / -    volume up / down
//	b        toggle the player 1 burst button
//	r        reset the engine
//	q        quit
func handleCommand(cmd string, eng *engine.Engine, latch *InputLatch) bool {
	switch cmd {
	case "":
		resume(eng)
	case "m":
		eng.SetMuted(!eng.Muted())
	case "+":
		eng.SetVolume(eng.Volume() + 0.1)
	case "-":
		eng.SetVolume(eng.Volume() - 0.1)
	case "b":
		latch.Toggle(0, democore.ButtonBurst)
	case "r":
		eng.Reset()
	case "q":
		return false
	default:
		log.Printf("Warning: unknown command %q", cmd)
	}
	return true
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
