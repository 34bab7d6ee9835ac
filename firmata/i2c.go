package firmata

import (
	"context"

	"github.com/arloliu/go-firmata/codec"
)

// I2CConfig enables I2C on the device and sets the delay, in microseconds,
// between a register write and the following read.
func (e *Engine) I2CConfig(delayMicros int) error {
	frame, err := codec.I2CConfig(delayMicros)
	if err != nil {
		return err
	}

	return e.send(frame)
}

// I2CWrite writes data to the peripheral at addr. Addresses above 0x7F use
// 10-bit addressing.
func (e *Engine) I2CWrite(addr int, data ...byte) error {
	return e.i2cSend(codec.I2CRequest{Address: addr, TenBit: addr > codec.MaxI2CAddress7Bit, Mode: codec.I2CWrite, Data: data})
}

// I2CWriteRegister writes data to register reg of the peripheral at addr.
func (e *Engine) I2CWriteRegister(addr, reg int, data ...byte) error {
	return e.i2cSend(codec.I2CRequest{
		Address:     addr,
		TenBit:      addr > codec.MaxI2CAddress7Bit,
		Mode:        codec.I2CWrite,
		Register:    reg,
		HasRegister: true,
		Data:        data,
	})
}

// I2CRead reads count bytes from the peripheral at addr.
func (e *Engine) I2CRead(ctx context.Context, addr, count int) ([]byte, error) {
	reply, err := e.I2CTransfer(ctx, codec.I2CRequest{
		Address: addr,
		TenBit:  addr > codec.MaxI2CAddress7Bit,
		Mode:    codec.I2CRead,
		Count:   count,
	})
	if err != nil {
		return nil, err
	}

	return reply.Data, nil
}

// I2CReadRegister reads count bytes starting at register reg of the
// peripheral at addr.
func (e *Engine) I2CReadRegister(ctx context.Context, addr, reg, count int) ([]byte, error) {
	reply, err := e.I2CTransfer(ctx, codec.I2CRequest{
		Address:     addr,
		TenBit:      addr > codec.MaxI2CAddress7Bit,
		Mode:        codec.I2CRead,
		Register:    reg,
		HasRegister: true,
		Count:       count,
	})
	if err != nil {
		return nil, err
	}

	return reply.Data, nil
}

// I2CReplyHandler receives the replies of a continuous I2C read. It runs on
// the reader goroutine, like an [EventListener].
type I2CReplyHandler func(codec.I2CReply)

// I2CReadContinuous makes the device read from the peripheral of req at
// every sampling interval and delivers each reply to h until
// [Engine.I2CStopReading]. The mode of req is ignored.
//
// While the read runs, every reply from that address goes to h, so a
// one-shot read of the same address would never see its answer.
func (e *Engine) I2CReadContinuous(req codec.I2CRequest, h I2CReplyHandler) error {
	if h == nil {
		return ErrContinuousRead
	}

	req.Mode = codec.I2CReadContinuous
	frame, err := codec.EncodeI2CRequest(req)
	if err != nil {
		return err
	}

	e.i2cReaders.Store(req.Address, h)
	if err := e.send(frame); err != nil {
		e.i2cReaders.Delete(req.Address)
		return err
	}

	return nil
}

// I2CStopReading stops continuous reads from the peripheral at addr.
func (e *Engine) I2CStopReading(addr int) error {
	return e.i2cSend(codec.I2CRequest{Address: addr, TenBit: addr > codec.MaxI2CAddress7Bit, Mode: codec.I2CStopReading})
}

// I2CTransfer sends a one-shot I2C request. Read requests wait for the
// reply from the addressed peripheral; writes and stop requests return an
// empty reply as soon as the request is written. Continuous reads are
// rejected with [ErrContinuousRead]; use [Engine.I2CReadContinuous].
func (e *Engine) I2CTransfer(ctx context.Context, req codec.I2CRequest) (codec.I2CReply, error) {
	switch req.Mode {
	case codec.I2CRead:
	case codec.I2CReadContinuous:
		return codec.I2CReply{}, ErrContinuousRead
	default:
		return codec.I2CReply{}, e.i2cSend(req)
	}

	frame, err := codec.EncodeI2CRequest(req)
	if err != nil {
		return codec.I2CReply{}, err
	}

	want := expectation{
		kind:   codec.KindI2CReply,
		accept: func(r codec.Response) bool { return r.(codec.I2CReply).Address == req.Address },
	}
	resp, err := e.request(ctx, "i2c read", frame, want)
	if err != nil {
		return codec.I2CReply{}, err
	}

	return resp.(codec.I2CReply), nil
}

func (e *Engine) i2cSend(req codec.I2CRequest) error {
	frame, err := codec.EncodeI2CRequest(req)
	if err != nil {
		return err
	}
	if err := e.send(frame); err != nil {
		return err
	}
	if req.Mode == codec.I2CStopReading {
		e.i2cReaders.Delete(req.Address)
	}

	return nil
}

// deliverI2C hands a reply of a continuous read to its handler and reports
// whether one was registered.
func (e *Engine) deliverI2C(reply codec.I2CReply) bool {
	h, ok := e.i2cReaders.Load(reply.Address)
	if !ok {
		return false
	}

	e.metrics.incNotifications()
	e.taskMgr.CallWithRecover("i2c reply handler", func() {
		h(reply)
	})

	return true
}
