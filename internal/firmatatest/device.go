// Package firmatatest provides a scripted Firmata device for tests. The
// device talks to the host over an in-memory pipe, records every frame it
// receives and answers through registered handlers.
package firmatatest

import (
	"bufio"
	"io"
	"net"
	"slices"
	"sync"
	"testing"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/transport"
)

// UnhandledText is the diagnostic a device sends for sysex commands it does
// not implement.
const UnhandledText = "Unhandled sysex command"

// SysexHandler handles one sysex frame. body holds the command id followed by
// the payload, without the start and end bytes.
type SysexHandler func(d *Device, body []byte)

// CommandHandler handles one plain command frame, status byte included.
type CommandHandler func(d *Device, frame []byte)

// Device is the device end of a pipe.
type Device struct {
	conn net.Conn
	host *transport.Stream

	mu       sync.Mutex
	sysex    map[codec.SysexCmd]SysexHandler
	commands map[byte]CommandHandler
	frames   [][]byte
	silent   bool

	writeMu sync.Mutex
	done    chan struct{}
}

// NewDevice creates a device without handlers. Unknown sysex commands are
// answered with [UnhandledText]. The pipe is closed when the test ends.
func NewDevice(t testing.TB) *Device {
	t.Helper()

	hostConn, devConn := net.Pipe()
	d := &Device{
		conn:     devConn,
		host:     transport.NewStream(hostConn),
		sysex:    make(map[codec.SysexCmd]SysexHandler),
		commands: make(map[byte]CommandHandler),
		done:     make(chan struct{}),
	}

	go d.serve()

	t.Cleanup(func() {
		_ = d.host.Close()
		d.Close()
	})

	return d
}

// Host returns the host end of the pipe, to be passed to the engine.
func (d *Device) Host() *transport.Stream { return d.host }

// OnSysex registers h for sysex command cmd, replacing any previous handler.
func (d *Device) OnSysex(cmd codec.SysexCmd, h SysexHandler) {
	d.mu.Lock()
	d.sysex[cmd] = h
	d.mu.Unlock()
}

// OnCommand registers h for a plain command. For channel commands pass the
// base status byte, e.g. 0x90 for every digital message.
func (d *Device) OnCommand(status byte, h CommandHandler) {
	d.mu.Lock()
	d.commands[status] = h
	d.mu.Unlock()
}

// SetSilent makes the device ignore unknown sysex commands instead of
// answering them, as firmware without string support does.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	d.silent = silent
	d.mu.Unlock()
}

// Send writes raw bytes to the host.
func (d *Device) Send(data ...byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err := d.conn.Write(data)

	return err
}

// SendSysex writes a sysex frame to the host.
func (d *Device) SendSysex(cmd codec.SysexCmd, payload ...byte) error {
	return d.Send(codec.Sysex(cmd, payload...)...)
}

// SendString writes a string diagnostic to the host.
func (d *Device) SendString(text string) error {
	return d.SendSysex(codec.SysexStringData, codec.EncodeString(text)...)
}

// SendDigital writes a digital bank report.
func (d *Device) SendDigital(bank int, mask int) error {
	lsb, msb := codec.EncodeValue(mask)
	return d.Send(byte(codec.DigitalMessage)|byte(bank&0x0F), lsb, msb)
}

// SendAnalog writes an analog channel report.
func (d *Device) SendAnalog(channel int, value int) error {
	lsb, msb := codec.EncodeValue(value)
	return d.Send(byte(codec.AnalogMessage)|byte(channel&0x0F), lsb, msb)
}

// Frames returns a copy of every frame received so far.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([][]byte, len(d.frames))
	for i, f := range d.frames {
		out[i] = slices.Clone(f)
	}

	return out
}

// SysexFrames returns the received sysex frames of command cmd.
func (d *Device) SysexFrames(cmd codec.SysexCmd) [][]byte {
	var out [][]byte
	for _, f := range d.Frames() {
		if len(f) > 2 && f[0] == byte(codec.StartSysex) && f[1] == byte(cmd) {
			out = append(out, f)
		}
	}

	return out
}

// HasFrame reports whether frame was received.
func (d *Device) HasFrame(frame []byte) bool {
	for _, f := range d.Frames() {
		if slices.Equal(f, frame) {
			return true
		}
	}

	return false
}

// Close closes the device end of the pipe and waits for the device loop.
func (d *Device) Close() {
	_ = d.conn.Close()
	<-d.done
}

// Hangup closes the device end of the pipe without waiting. Handlers use it
// to simulate a device that goes away mid request.
func (d *Device) Hangup() {
	_ = d.conn.Close()
}

// Done is closed when the device loop exits.
func (d *Device) Done() <-chan struct{} { return d.done }

func (d *Device) serve() {
	defer close(d.done)

	r := bufio.NewReader(d.conn)
	for {
		frame, err := readFrame(r)
		if err != nil {
			return
		}
		d.dispatch(frame)
	}
}

func (d *Device) dispatch(frame []byte) {
	d.mu.Lock()
	d.frames = append(d.frames, frame)

	if frame[0] == byte(codec.StartSysex) {
		cmd := codec.SysexCmd(frame[1])
		h, ok := d.sysex[cmd]
		silent := d.silent
		d.mu.Unlock()

		switch {
		case ok:
			h(d, frame[1:len(frame)-1])
		case !silent:
			_ = d.SendString(UnhandledText)
		}

		return
	}

	h, ok := d.commands[commandKey(frame[0])]
	d.mu.Unlock()
	if ok {
		h(d, frame)
	}
}

func commandKey(status byte) byte {
	if status < byte(codec.StartSysex) {
		return status & 0xF0
	}

	return status
}

// dataLen returns the number of data bytes following a plain status byte.
func dataLen(status byte) int {
	switch commandKey(status) {
	case byte(codec.DigitalMessage), byte(codec.AnalogMessage),
		byte(codec.SetPinModeCmd), byte(codec.SetDigitalPinCmd):
		return 2
	case byte(codec.ReportAnalog), byte(codec.ReportDigital):
		return 1
	default:
		return 0
	}
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	for {
		status, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		if status == byte(codec.StartSysex) {
			frame := []byte{status}
			for {
				b, err := r.ReadByte()
				if err != nil {
					return nil, err
				}
				frame = append(frame, b)
				if b == byte(codec.EndSysex) {
					if len(frame) < 3 {
						break
					}

					return frame, nil
				}
			}

			continue
		}

		if status&0x80 == 0 {
			// resynchronize on the next status byte
			continue
		}

		frame := make([]byte, 1+dataLen(status))
		frame[0] = status
		if _, err := io.ReadFull(r, frame[1:]); err != nil {
			return nil, err
		}

		return frame, nil
	}
}
