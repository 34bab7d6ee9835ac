package periphio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/firmata"
	"github.com/arloliu/go-firmata/internal/pool"
)

var (
	ErrPullDown      = errors.New("periphio: pull down is not supported")
	ErrNotInput      = errors.New("periphio: pin is not in an input mode")
	ErrUnsupportedFn = errors.New("periphio: function not supported")
)

// Pin is one board pin as a gpio.PinIO.
//
// Read returns the level from the engine's pin cache, which follows value
// reports, so it costs no round trip. Edges are detected from value reports
// and are only seen while the pin's bank is reporting, which In enables.
type Pin struct {
	b *Board
	p *firmata.Pin

	mu    sync.Mutex
	edge  gpio.Edge
	last  gpio.Level
	edges chan struct{}
	// halt is closed by Halt to release pending WaitForEdge calls
	halt chan struct{}
}

var (
	_ gpio.PinIO  = (*Pin)(nil)
	_ pin.PinFunc = (*Pin)(nil)
)

func newPin(b *Board, p *firmata.Pin) *Pin {
	return &Pin{
		b:     b,
		p:     p,
		last:  p.Value() != 0,
		edges: make(chan struct{}, 1),
		halt:  make(chan struct{}),
	}
}

func (p *Pin) String() string { return p.Name() }

// Name returns the pin name, "P" followed by the pin number.
func (p *Pin) Name() string { return fmt.Sprintf("P%d", p.p.Index()) }

// Number returns the pin number.
func (p *Pin) Number() int { return p.p.Index() }

// Function returns the current function as a string.
//
// Deprecated: Use Func.
func (p *Pin) Function() string { return string(p.Func()) }

// Halt stops edge detection and releases pending WaitForEdge calls.
func (p *Pin) Halt() error {
	p.mu.Lock()
	p.edge = gpio.NoEdge
	close(p.halt)
	p.halt = make(chan struct{})
	p.mu.Unlock()

	return nil
}

// In sets the pin to a digital input and enables reporting of its bank.
// PullNoChange keeps the current input mode.
func (p *Pin) In(pull gpio.Pull, edge gpio.Edge) error {
	var mode codec.PinMode
	switch pull {
	case gpio.PullDown:
		return ErrPullDown
	case gpio.PullUp:
		mode = codec.PinModeInputPullUp
	case gpio.Float:
		mode = codec.PinModeDigitalInput
	case gpio.PullNoChange:
		mode = p.p.Mode()
		if mode != codec.PinModeDigitalInput && mode != codec.PinModeInputPullUp {
			mode = codec.PinModeDigitalInput
		}
	}

	if err := p.b.e.SetPinMode(p.p.Index(), mode); err != nil {
		return err
	}
	if err := p.b.e.EnableDigitalReporting(p.p.Index()/8, true); err != nil {
		return err
	}

	p.mu.Lock()
	p.edge = edge
	p.last = p.p.Value() != 0
	p.mu.Unlock()

	return nil
}

// Read returns the last known level.
func (p *Pin) Read() gpio.Level {
	return p.p.Value() != 0
}

// WaitForEdge waits for the edge configured in In. A negative timeout waits
// forever.
func (p *Pin) WaitForEdge(timeout time.Duration) bool {
	p.mu.Lock()
	edge, halt := p.edge, p.halt
	p.mu.Unlock()
	if edge == gpio.NoEdge {
		return false
	}

	if timeout < 0 {
		select {
		case <-p.edges:
			return true
		case <-halt:
			return false
		}
	}

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case <-p.edges:
		return true
	case <-halt:
		return false
	case <-timer.C:
		return false
	}
}

// Pull returns the pull of an input pin derived from its mode.
func (p *Pin) Pull() gpio.Pull {
	switch p.p.Mode() {
	case codec.PinModeInputPullUp:
		return gpio.PullUp
	case codec.PinModeDigitalInput:
		return gpio.Float
	default:
		return gpio.PullNoChange
	}
}

// DefaultPull returns Float, the state of Firmata pins after reset.
func (p *Pin) DefaultPull() gpio.Pull { return gpio.Float }

// Out drives the pin, switching it to digital output first if needed.
func (p *Pin) Out(l gpio.Level) error {
	if p.p.Mode() != codec.PinModeDigitalOutput {
		if err := p.b.e.SetPinMode(p.p.Index(), codec.PinModeDigitalOutput); err != nil {
			return err
		}
	}

	return p.b.e.SetDigitalValue(p.p.Index(), bool(l))
}

// PWM sets the duty cycle, scaled to the resolution of the pin's PWM
// capability. The frequency is fixed by the firmware; f is ignored.
func (p *Pin) PWM(duty gpio.Duty, _ physic.Frequency) error {
	c, ok := p.p.Capability(codec.PinModePWM)
	if !ok {
		return fmt.Errorf("%w: %s has no PWM", ErrUnsupportedFn, p.Name())
	}
	if duty < 0 || duty > gpio.DutyMax {
		return fmt.Errorf("periphio: duty %d out of range", duty)
	}

	if p.p.Mode() != codec.PinModePWM {
		if err := p.b.e.SetPinMode(p.p.Index(), codec.PinModePWM); err != nil {
			return err
		}
	}

	value := int64(duty) * int64(c.Max()) / int64(gpio.DutyMax)

	return p.b.e.SetValue(p.p.Index(), uint32(value))
}

// Func returns the function matching the cached pin mode.
func (p *Pin) Func() pin.Func {
	switch p.p.Mode() {
	case codec.PinModeDigitalInput:
		return gpio.IN
	case codec.PinModeInputPullUp:
		return gpio.IN_HIGH
	case codec.PinModeDigitalOutput:
		if p.Read() {
			return gpio.OUT_HIGH
		}
		return gpio.OUT_LOW
	case codec.PinModePWM:
		return gpio.PWM
	case codec.PinModeI2C:
		return i2c.SDA
	case codec.PinModeUnknown:
		return pin.FuncNone
	default:
		return pin.Func(p.p.Mode().String())
	}
}

// SupportedFuncs returns the functions the pin's capabilities allow.
func (p *Pin) SupportedFuncs() []pin.Func {
	var funcs []pin.Func
	for _, c := range p.p.Capabilities() {
		switch c.Mode {
		case codec.PinModeDigitalInput:
			funcs = append(funcs, gpio.IN)
		case codec.PinModeInputPullUp:
			funcs = append(funcs, gpio.IN_HIGH)
		case codec.PinModeDigitalOutput:
			funcs = append(funcs, gpio.OUT)
		case codec.PinModePWM:
			funcs = append(funcs, gpio.PWM)
		}
	}

	return funcs
}

// SetFunc switches the pin to one of SupportedFuncs.
func (p *Pin) SetFunc(f pin.Func) error {
	switch f {
	case gpio.IN, gpio.FLOAT:
		return p.In(gpio.Float, gpio.NoEdge)
	case gpio.IN_HIGH:
		return p.In(gpio.PullUp, gpio.NoEdge)
	case gpio.OUT, gpio.OUT_LOW:
		return p.Out(gpio.Low)
	case gpio.OUT_HIGH:
		return p.Out(gpio.High)
	case gpio.PWM:
		return p.PWM(0, 0)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFn, f)
	}
}

// onEvent runs on the engine's reader goroutine.
func (p *Pin) onEvent(ev firmata.Event) {
	level := gpio.Level(ev.Value != 0)

	p.mu.Lock()
	prev := p.last
	p.last = level
	edge := p.edge
	p.mu.Unlock()

	if level == prev {
		return
	}
	if edge == gpio.BothEdges ||
		(edge == gpio.RisingEdge && level == gpio.High) ||
		(edge == gpio.FallingEdge && level == gpio.Low) {
		select {
		case p.edges <- struct{}{}:
		default:
		}
	}
}
