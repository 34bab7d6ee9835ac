package firmata

import (
	"context"
	"fmt"
	"sort"

	"github.com/arloliu/go-firmata/codec"
)

const pinsPerBank = 8

// Pins returns the cached pins in index order.
func (e *Engine) Pins() []*Pin {
	pins := make([]*Pin, 0, e.pins.Size())
	e.pins.Range(func(_ int, p *Pin) bool {
		pins = append(pins, p)
		return true
	})
	sort.Slice(pins, func(i, j int) bool { return pins[i].index < pins[j].index })

	return pins
}

// Pin returns the cached pin with the given index.
func (e *Engine) Pin(index int) (*Pin, error) {
	p, ok := e.pins.Load(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, index)
	}

	return p, nil
}

// AnalogChannelPin returns the pin mapped to an analog channel.
func (e *Engine) AnalogChannelPin(channel int) (*Pin, error) {
	index, ok := (*e.channelPins.Load())[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}

	return e.Pin(index)
}

// SetPinMode sets the mode of a pin and marks it for event reporting.
//
// Only the pin mode frame is written. The analog input mode makes the device
// report the pin's analog channel by itself; digital input pins report once
// their bank is enabled with [Engine.EnableDigitalReporting].
func (e *Engine) SetPinMode(index int, mode codec.PinMode) error {
	pin, err := e.Pin(index)
	if err != nil {
		return err
	}
	if len(pin.capabilities) > 0 && !pin.Supports(mode) {
		return fmt.Errorf("%w: pin %d, mode %s", ErrUnsupportedMode, index, mode)
	}

	frame, err := codec.SetPinMode(index, mode)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	pin.setMode(mode, true)

	return nil
}

// SetDigitalValue drives a single digital pin high or low.
func (e *Engine) SetDigitalValue(index int, high bool) error {
	pin, err := e.Pin(index)
	if err != nil {
		return err
	}

	frame, err := codec.SetDigitalPin(index, high)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}

	if high {
		pin.setValue(1)
	} else {
		pin.setValue(0)
	}

	return nil
}

// SetDigitalBank writes all 8 pins of a bank at once; bit i of mask drives
// pin bank*8+i.
func (e *Engine) SetDigitalBank(bank int, mask uint8) error {
	frame, err := codec.SetDigitalBank(bank, mask)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}

	for bit := 0; bit < pinsPerBank; bit++ {
		if pin, ok := e.pins.Load(bank*pinsPerBank + bit); ok {
			pin.setValue(int(mask>>bit) & 1)
		}
	}

	return nil
}

// SetValue writes an analog style value (PWM duty, servo angle, ...) to a
// pin. Values above the maximum of the pin's current mode are rejected.
func (e *Engine) SetValue(index int, value uint32) error {
	pin, err := e.Pin(index)
	if err != nil {
		return err
	}
	if c, ok := pin.Capability(pin.Mode()); ok && c.Resolution > 0 && c.Resolution < 32 && value > uint32(c.Max()) {
		return fmt.Errorf("%w: value %d exceeds %d for pin %d in mode %s",
			codec.ErrValueOutOfRange, value, c.Max(), index, c.Mode)
	}

	frame, err := codec.SetValue(index, value)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	pin.setValue(int(value))

	return nil
}

// RefreshPinState queries the device for the mode and state of a pin and
// overwrites the cache with the answer. For output modes the state is the
// last written value; for input modes it is the pull-up configuration.
func (e *Engine) RefreshPinState(ctx context.Context, index int) (codec.PinState, error) {
	pin, err := e.Pin(index)
	if err != nil {
		return codec.PinState{}, err
	}

	frame, err := codec.PinStateQuery(index)
	if err != nil {
		return codec.PinState{}, err
	}

	want := expectation{
		kind:   codec.KindPinState,
		accept: func(r codec.Response) bool { return r.(codec.PinState).Pin == index },
	}
	resp, err := e.request(ctx, "pin state query", frame, want)
	if err != nil {
		return codec.PinState{}, err
	}

	state := resp.(codec.PinState)
	pin.setState(state.Mode, int(state.State))

	return state, nil
}

// EnableDigitalReporting turns value reports of a digital bank on or off.
// Analog input pins of the bank keep their channel reporting.
func (e *Engine) EnableDigitalReporting(bank int, on bool) error {
	frame, err := codec.ReportDigitalBank(bank, on)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}

	for bit := 0; bit < pinsPerBank; bit++ {
		if pin, ok := e.pins.Load(bank*pinsPerBank + bit); ok && !pin.isAnalogInput() {
			pin.setReporting(on)
		}
	}

	return nil
}

// EnableAnalogReporting turns value reports of an analog channel on or off.
func (e *Engine) EnableAnalogReporting(channel int, on bool) error {
	frame, err := codec.ReportAnalogChannel(channel, on)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}

	if pin, err := e.AnalogChannelPin(channel); err == nil {
		pin.setReporting(on)
	}

	return nil
}

// ConfigureServo sets the pulse range of a servo pin in microseconds. The
// device attaches the servo, so the cached mode becomes servo.
func (e *Engine) ConfigureServo(index, minPulse, maxPulse int) error {
	pin, err := e.Pin(index)
	if err != nil {
		return err
	}

	frame, err := codec.ServoConfig(index, minPulse, maxPulse)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	pin.setMode(codec.PinModeServo, pin.Reporting())

	return nil
}
