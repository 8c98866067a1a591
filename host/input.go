package host

import (
	"sync/atomic"

	simcore "github.com/user-none/corehost/api"
)

// MaxPlayers is the number of controller ports the latch holds.
const MaxPlayers = 4

// InputLatch holds controller state as button bitmasks. Any goroutine may
// write it; Apply forwards changes to the core and runs inside the audio
// callback, so the core only ever sees input between steps.
type InputLatch struct {
	buttons [MaxPlayers]atomic.Uint32
	dirty   atomic.Bool
	target  simcore.InputSetter
}

// NewInputLatch creates a latch for core. Cores that do not accept input
// get a latch whose Apply does nothing.
func NewInputLatch(core simcore.Core) *InputLatch {
	l := &InputLatch{}
	if setter, ok := core.(simcore.InputSetter); ok {
		l.target = setter
	}
	return l
}

// Set updates the button bitmask for a player.
func (l *InputLatch) Set(player int, buttons uint32) {
	if player < 0 || player >= MaxPlayers {
		return
	}
	l.buttons[player].Store(buttons)
	l.dirty.Store(true)
}

// Toggle flips the given buttons for a player and returns the new mask.
func (l *InputLatch) Toggle(player int, buttons uint32) uint32 {
	if player < 0 || player >= MaxPlayers {
		return 0
	}
	for {
		old := l.buttons[player].Load()
		if l.buttons[player].CompareAndSwap(old, old^buttons) {
			l.dirty.Store(true)
			return old ^ buttons
		}
	}
}

// Read returns the current button bitmasks for all players.
func (l *InputLatch) Read() [MaxPlayers]uint32 {
	var result [MaxPlayers]uint32
	for i := range l.buttons {
		result[i] = l.buttons[i].Load()
	}
	return result
}

// Apply forwards the latched state to the core if it changed since the
// last call. It never blocks.
func (l *InputLatch) Apply() {
	if l.target == nil || !l.dirty.Swap(false) {
		return
	}
	for i := range l.buttons {
		l.target.SetInput(i, l.buttons[i].Load())
	}
}
