package firmata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-firmata/codec"
)

// maxSysexLen bounds the body of one inbound sysex frame.
const maxSysexLen = 1 << 16

var errSysexTooLong = errors.New("firmata: sysex frame exceeds maximum length")

// readLoop is one iteration of the reader loop: it reads and dispatches one
// frame. It returns false to stop the loop.
func (e *Engine) readLoop(_ context.Context) bool {
	b, err := e.transport.ReadByte()
	if err != nil {
		return e.handleReadError(err)
	}

	switch {
	case b == byte(codec.StartSysex):
		return e.readSysex()

	case b == byte(codec.ReportVersion):
		data, err := e.readData(2)
		if err != nil {
			return e.handleReadError(err)
		}
		e.metrics.incFramesRecv()
		e.responses.Push(codec.DecodeVersion(data[0], data[1]))

	case codec.IsDigitalMessage(b) || codec.IsAnalogMessage(b):
		data, err := e.readData(2)
		if err != nil {
			return e.handleReadError(err)
		}
		e.metrics.incFramesRecv()
		v, _ := codec.DecodeValueOnPort(b, data[0], data[1])
		e.notify(v)

	default:
		e.logger.Debug("firmata: skip unexpected byte", "byte", fmt.Sprintf("0x%02X", b))
	}

	return true
}

// readData reads the n data bytes of a plain command.
func (e *Engine) readData(n int) ([]byte, error) {
	data := make([]byte, n)
	for i := range data {
		b, err := e.transport.ReadByte()
		if err != nil {
			return nil, err
		}
		data[i] = b
	}

	return data, nil
}

func (e *Engine) readSysex() bool {
	body := make([]byte, 0, 32)
	for {
		b, err := e.transport.ReadByte()
		if err != nil {
			return e.handleReadError(err)
		}
		if b == byte(codec.EndSysex) {
			break
		}
		if len(body) >= maxSysexLen {
			e.metrics.incDecodeErrors()
			e.logger.Error("firmata: reader loop stopped", "error", errSysexTooLong)

			return false
		}
		body = append(body, b)
	}
	e.metrics.incFramesRecv()

	resp, err := codec.DecodeSysex(body)
	if err != nil {
		e.metrics.incDecodeErrors()
		e.logger.Error("firmata: reader loop stopped on malformed frame",
			"error", err, "frame", fmt.Sprintf("% X", body))

		return false
	}
	if resp == nil {
		e.metrics.incUnknownSysex()
		e.logger.Warn("firmata: unknown sysex command", "command", codec.SysexCmd(body[0]).String())

		return true
	}

	if diag, ok := resp.(codec.StringDiagnostic); ok {
		e.metrics.incDiagnostics()
		if e.shuttingDown.Load() && e.isUnsupported(diag.Text) {
			e.logger.Debug("firmata: shutdown acknowledged by device", "text", diag.Text)
			return false
		}
	}

	if reply, ok := resp.(codec.I2CReply); ok && e.deliverI2C(reply) {
		return true
	}

	e.responses.Push(resp)

	return true
}

func (e *Engine) handleReadError(err error) bool {
	switch {
	case errors.Is(err, io.EOF):
		e.logger.Info("firmata: transport reached end of stream")
	case e.shuttingDown.Load():
		e.logger.Debug("firmata: read interrupted by shutdown", "error", err)
	default:
		e.logger.Error("firmata: reader loop stopped on read error", "error", err)
	}

	return false
}

// onReaderExit marks the engine not running and releases waiting requests.
func (e *Engine) onReaderExit() {
	e.running.Store(false)
	close(e.readerDone)
}

// notify routes a value report to the pin cache and the event listener.
func (e *Engine) notify(v codec.ValueOnPort) {
	e.metrics.incNotifications()
	now := time.Now()

	switch v.Port {
	case codec.PortDigital:
		for bit := 0; bit < 8; bit++ {
			index := v.Index*8 + bit
			pin, ok := e.pins.Load(index)
			if !ok || pin.isAnalogInput() {
				continue
			}
			value := (v.Value >> bit) & 1
			if pin.update(value) {
				e.emit(Event{Kind: codec.PortDigital, Pin: index, Value: value}, now)
			}
		}

	case codec.PortAnalog:
		index, ok := (*e.channelPins.Load())[v.Index]
		if !ok {
			e.logger.Debug("firmata: value for unmapped analog channel", "channel", v.Index)
			return
		}
		pin, ok := e.pins.Load(index)
		if !ok {
			return
		}
		if pin.update(v.Value) {
			e.emit(Event{Kind: codec.PortAnalog, Pin: index, Value: v.Value}, now)
		}
	}
}

func (e *Engine) emit(ev Event, now time.Time) {
	box := e.listener.Load()
	if box == nil {
		return
	}

	ev.EpochMillis = now.UnixMilli()
	ev.MonoNanos = e.monoNanos(now)

	e.metrics.incListenerEvents()
	e.taskMgr.CallWithRecover("event listener", func() {
		box.l.OnEvent(ev)
	})
}
