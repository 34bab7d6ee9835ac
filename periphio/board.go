// Package periphio exposes a firmata engine through periph.io interfaces, so
// that periph device drivers can use the pins and the I2C bus of a board
// attached over Firmata.
package periphio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-firmata/firmata"
)

// Board adapts an engine. It installs itself as the engine's event listener
// and forwards every event to the pins created from it and then to the
// listener set with SetEventListener.
type Board struct {
	e *firmata.Engine

	mu   sync.Mutex
	pins map[int]*Pin
	bus  *I2CBus

	user atomic.Pointer[listenerBox]
}

type listenerBox struct {
	l firmata.EventListener
}

// NewBoard wraps e. The engine's current event listener is replaced.
func NewBoard(e *firmata.Engine) *Board {
	b := &Board{e: e, pins: make(map[int]*Pin)}
	e.SetEventListener(b)

	return b
}

// Engine returns the wrapped engine.
func (b *Board) Engine() *firmata.Engine { return b.e }

// SetEventListener sets a listener that receives every event after the pins;
// nil removes it.
func (b *Board) SetEventListener(l firmata.EventListener) {
	if l == nil {
		b.user.Store(nil)
		return
	}
	b.user.Store(&listenerBox{l: l})
}

// OnEvent implements firmata.EventListener.
func (b *Board) OnEvent(ev firmata.Event) {
	b.mu.Lock()
	p := b.pins[ev.Pin]
	b.mu.Unlock()

	if p != nil {
		p.onEvent(ev)
	}
	if box := b.user.Load(); box != nil {
		box.l.OnEvent(ev)
	}
}

// Pin returns the GPIO view of pin index. Repeated calls return the same Pin.
func (b *Board) Pin(index int) (*Pin, error) {
	fp, err := b.e.Pin(index)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pins[index]; ok {
		return p, nil
	}
	p := newPin(b, fp)
	b.pins[index] = p

	return p, nil
}

// I2CBus enables I2C on the board and returns its bus.
func (b *Board) I2CBus() (*I2CBus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bus != nil {
		return b.bus, nil
	}
	if err := b.e.I2CConfig(0); err != nil {
		return nil, fmt.Errorf("periphio: enable i2c: %w", err)
	}
	b.bus = &I2CBus{b: b}

	return b.bus, nil
}

// Close closes the engine.
func (b *Board) Close() error {
	return b.e.Close()
}

func (b *Board) String() string {
	return b.e.Firmware().String()
}
