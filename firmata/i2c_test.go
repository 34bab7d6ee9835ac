package firmata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/firmatatest"
)

func TestEngine_I2CRead(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	board.OnSysex(codec.SysexI2CRequest, firmatatest.I2CEcho)
	e := startTestEngine(t, board.Device)

	require.NoError(e.I2CConfig(0))

	data, err := e.I2CReadRegister(testContext(t), 0x48, 0x10, 3)
	require.NoError(err)
	require.Equal([]byte{0x10, 0x11, 0x12}, data)

	data, err = e.I2CRead(testContext(t), 0x48, 2)
	require.NoError(err)
	require.Equal([]byte{0x00, 0x01}, data)

	reply, err := e.I2CTransfer(testContext(t), codec.I2CRequest{
		Address: 0x2A5, TenBit: true, Mode: codec.I2CRead, Register: 4, HasRegister: true, Count: 1,
	})
	require.NoError(err)
	require.Equal(codec.I2CReply{Address: 0x2A5, Register: 4, Data: []byte{0x04}}, reply)
}

func TestEngine_I2CWrite(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.I2CWriteRegister(0x3C, 0x00, 0xAE))
	require.NoError(e.I2CWrite(0x3C, 0x01, 0x02))
	require.NoError(e.I2CStopReading(0x3C))

	writeReg, err := codec.EncodeI2CRequest(codec.I2CRequest{
		Address: 0x3C, Mode: codec.I2CWrite, Register: 0x00, HasRegister: true, Data: []byte{0xAE},
	})
	require.NoError(err)
	stop, err := codec.EncodeI2CRequest(codec.I2CRequest{Address: 0x3C, Mode: codec.I2CStopReading})
	require.NoError(err)

	require.Eventually(func() bool {
		return len(board.SysexFrames(codec.SysexI2CRequest)) == 3
	}, testTimeout, 5*time.Millisecond)

	frames := board.SysexFrames(codec.SysexI2CRequest)
	require.Equal(writeReg, frames[0])
	require.Equal(stop, frames[2])

	require.Error(e.I2CWrite(codec.MaxI2CAddress10Bit+1, 0x00))
}

func TestEngine_I2CReadContinuous(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	board.OnSysex(codec.SysexI2CRequest, func(d *firmatatest.Device, body []byte) {
		if codec.I2CMode((body[2]>>3)&0x03) != codec.I2CReadContinuous {
			return
		}
		for i := 0; i < 50; i++ {
			_ = d.SendSysex(codec.SysexI2CReply, firmatatest.I2CReplyPayload(0x40, 0x02, []byte{byte(i)})...)
		}
	})
	e := startTestEngine(t, board.Device)

	replies := make(chan codec.I2CReply, 64)
	req := codec.I2CRequest{Address: 0x40, Register: 0x02, HasRegister: true, Count: 1}
	require.NoError(e.I2CReadContinuous(req, func(r codec.I2CReply) { replies <- r }))

	for i := 0; i < 50; i++ {
		select {
		case r := <-replies:
			require.Equal(codec.I2CReply{Address: 0x40, Register: 0x02, Data: []byte{byte(i)}}, r)
		case <-time.After(testTimeout):
			require.FailNow("continuous reply not delivered", "reply %d", i)
		}
	}

	// nothing was left on the response queue
	_, err := e.FirmwareDetails(testContext(t))
	require.NoError(err)
	require.Zero(e.GetMetrics().DiscardedResponses.Load())

	require.NoError(e.I2CStopReading(0x40))
	stop, err := codec.EncodeI2CRequest(codec.I2CRequest{Address: 0x40, Mode: codec.I2CStopReading})
	require.NoError(err)
	require.Eventually(func() bool { return board.HasFrame(stop) }, testTimeout, 5*time.Millisecond)

	// after the stop a reply is an ordinary response again
	board.OnSysex(codec.SysexI2CRequest, firmatatest.I2CEcho)
	data, err := e.I2CRead(testContext(t), 0x40, 2)
	require.NoError(err)
	require.Equal([]byte{0x00, 0x01}, data)
}

func TestEngine_I2CContinuousNeedsHandler(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	_, err := e.I2CTransfer(testContext(t), codec.I2CRequest{Address: 0x40, Mode: codec.I2CReadContinuous, Count: 1})
	require.ErrorIs(err, ErrContinuousRead)
	require.ErrorIs(e.I2CReadContinuous(codec.I2CRequest{Address: 0x40, Count: 1}, nil), ErrContinuousRead)
	require.Empty(board.SysexFrames(codec.SysexI2CRequest))
}
