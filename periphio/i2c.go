package periphio

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"github.com/arloliu/go-firmata/codec"
)

// ErrSetSpeed is returned by SetSpeed; the bus clock is fixed by the firmware.
var ErrSetSpeed = errors.New("periphio: firmata does not support setting the bus frequency")

// I2CBus is the board's I2C bus as an i2c.BusCloser.
type I2CBus struct {
	b  *Board
	mu sync.Mutex
}

var _ i2c.BusCloser = (*I2CBus)(nil)

// Tx writes w and then reads len(r) bytes from the device at addr. Addresses
// above 0x7F use 10-bit addressing.
//
// A one byte write followed by a read is sent as a single register read,
// which is how Firmata expresses the repeated start transaction most
// drivers issue.
func (bus *I2CBus) Tx(addr uint16, w, r []byte) error {
	if int(addr) > codec.MaxI2CAddress10Bit {
		return fmt.Errorf("periphio: i2c address 0x%X out of range", addr)
	}
	if len(r) > codec.MaxValue14 {
		return fmt.Errorf("periphio: i2c read of %d bytes exceeds %d", len(r), codec.MaxValue14)
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()

	e := bus.b.e
	a := int(addr)
	ctx := bus.b.e.Context()

	switch {
	case len(w) == 1 && len(r) > 0:
		data, err := e.I2CReadRegister(ctx, a, int(w[0]), len(r))
		if err != nil {
			return err
		}
		return copyReply(r, data)

	case len(w) > 0:
		if err := e.I2CWrite(a, w...); err != nil {
			return err
		}
	}

	if len(r) > 0 {
		data, err := e.I2CRead(ctx, a, len(r))
		if err != nil {
			return err
		}
		return copyReply(r, data)
	}

	return nil
}

func copyReply(r, data []byte) error {
	if len(data) < len(r) {
		return fmt.Errorf("periphio: short i2c reply, got %d of %d bytes", len(data), len(r))
	}
	copy(r, data)

	return nil
}

// SetSpeed always fails.
func (bus *I2CBus) SetSpeed(physic.Frequency) error {
	return ErrSetSpeed
}

// Close is a no-op; the bus lives as long as the engine.
func (bus *I2CBus) Close() error { return nil }

func (bus *I2CBus) String() string {
	return "firmata-i2c"
}
