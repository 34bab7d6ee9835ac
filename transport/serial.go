package transport

import (
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the baud rate of StandardFirmata sketches.
const DefaultBaudRate = 57600

// SerialOption configures OpenSerial.
type SerialOption func(*serial.Mode)

// WithBaudRate sets the baud rate.
func WithBaudRate(baud int) SerialOption {
	return func(m *serial.Mode) { m.BaudRate = baud }
}

// WithParity sets the parity mode.
func WithParity(p serial.Parity) SerialOption {
	return func(m *serial.Mode) { m.Parity = p }
}

// WithStopBits sets the number of stop bits.
func WithStopBits(s serial.StopBits) SerialOption {
	return func(m *serial.Mode) { m.StopBits = s }
}

// OpenSerial opens a serial port, 57600 8N1 unless changed by opts.
func OpenSerial(path string, opts ...SerialOption) (*Stream, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	for _, opt := range opts {
		opt(mode)
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", path, err)
	}

	return NewStream(&serialPort{Port: port}), nil
}

// serialPort reports a closed port as end of stream.
type serialPort struct {
	serial.Port
}

func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if err != nil && isPortClosed(err) {
		return n, io.EOF
	}
	if n == 0 && err == nil {
		// a read returning nothing without error means the device is gone
		return 0, io.EOF
	}

	return n, err
}

func isPortClosed(err error) bool {
	var perr *serial.PortError
	if errors.As(err, &perr) {
		return perr.Code() == serial.PortClosed
	}

	var verr serial.PortError
	if errors.As(err, &verr) {
		return verr.Code() == serial.PortClosed
	}

	return false
}
