package firmata

import (
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/go-firmata/codec"
)

// Pin is the engine's cached view of one device pin.
//
// Capabilities are fixed once parsed. Mode, value and reporting are updated
// optimistically after writes, from pin state queries and from value
// notifications.
type Pin struct {
	index        int
	capabilities []codec.Capability

	mu            sync.RWMutex
	mode          codec.PinMode
	value         int
	reporting     bool
	analogChannel int
}

func newPin(index int, caps []codec.Capability) *Pin {
	return &Pin{
		index:         index,
		capabilities:  slices.Clone(caps),
		mode:          codec.PinModeUnknown,
		analogChannel: codec.NoAnalogChannel,
	}
}

// Index returns the pin number.
func (p *Pin) Index() int { return p.index }

// Capabilities returns a copy of the pin's mode/resolution list.
func (p *Pin) Capabilities() []codec.Capability {
	return slices.Clone(p.capabilities)
}

// Capability returns the capability entry for mode.
func (p *Pin) Capability(mode codec.PinMode) (codec.Capability, bool) {
	for _, c := range p.capabilities {
		if c.Mode == mode {
			return c, true
		}
	}

	return codec.Capability{}, false
}

// Supports reports whether the pin lists mode among its capabilities.
func (p *Pin) Supports(mode codec.PinMode) bool {
	_, ok := p.Capability(mode)
	return ok
}

// Mode returns the last known pin mode.
func (p *Pin) Mode() codec.PinMode {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.mode
}

// Value returns the last known value: the last written value for outputs,
// the last reported value for inputs.
func (p *Pin) Value() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.value
}

// Reporting reports whether value notifications for the pin are forwarded to
// the event listener.
func (p *Pin) Reporting() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.reporting
}

// AnalogChannel returns the pin's analog channel or [codec.NoAnalogChannel].
func (p *Pin) AnalogChannel() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.analogChannel
}

// MaxValue returns the largest value of the pin in its current mode, or 0 if
// the mode has no capability entry.
func (p *Pin) MaxValue() int {
	c, ok := p.Capability(p.Mode())
	if !ok {
		return 0
	}

	return c.Max()
}

// isAnalogInput reports whether the pin's value comes from its analog
// channel; digital bank reports carry no value for it.
func (p *Pin) isAnalogInput() bool {
	return p.Mode() == codec.PinModeAnalogInput
}

func (p *Pin) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return fmt.Sprintf("Pin(%d, %s, %d)", p.index, p.mode, p.value)
}

func (p *Pin) setMode(mode codec.PinMode, reporting bool) {
	p.mu.Lock()
	p.mode = mode
	p.reporting = reporting
	p.mu.Unlock()
}

func (p *Pin) setValue(v int) {
	p.mu.Lock()
	p.value = v
	p.mu.Unlock()
}

func (p *Pin) setReporting(on bool) {
	p.mu.Lock()
	p.reporting = on
	p.mu.Unlock()
}

func (p *Pin) setAnalogChannel(ch int) {
	p.mu.Lock()
	p.analogChannel = ch
	p.mu.Unlock()
}

func (p *Pin) setState(mode codec.PinMode, v int) {
	p.mu.Lock()
	p.mode = mode
	p.value = v
	p.mu.Unlock()
}

// update stores a reported value and returns whether it should be forwarded
// to the listener.
func (p *Pin) update(v int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.value = v

	return p.reporting
}

func (p *Pin) reset() {
	p.mu.Lock()
	p.mode = codec.PinModeUnknown
	p.value = 0
	p.reporting = false
	p.mu.Unlock()
}
