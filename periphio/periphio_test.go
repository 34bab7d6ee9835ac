package periphio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/firmata"
	"github.com/arloliu/go-firmata/internal/firmatatest"
)

const testTimeout = 3 * time.Second

func newTestBoard(t *testing.T) (*Board, *firmatatest.Board) {
	t.Helper()

	dev := firmatatest.NewBoard(t)
	dev.OnSysex(codec.SysexI2CRequest, firmatatest.I2CEcho)

	cfg, err := firmata.NewEngineConfig(
		firmata.WithCloseTimeout(500*time.Millisecond),
		firmata.WithResponseTimeout(testTimeout),
	)
	require.NoError(t, err)

	e, err := firmata.NewEngine(context.Background(), dev.Host(), cfg)
	require.NoError(t, err)

	b := NewBoard(e)
	t.Cleanup(func() { _ = b.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, e.Start(ctx))

	return b, dev
}

func TestPin_Out(t *testing.T) {
	require := require.New(t)

	b, dev := newTestBoard(t)
	p, err := b.Pin(13)
	require.NoError(err)
	require.Equal("P13", p.Name())
	require.Equal(13, p.Number())
	require.Equal(pin.FuncNone, p.Func())

	require.NoError(p.Out(gpio.High))
	require.Equal(gpio.High, p.Read())
	require.Equal(gpio.OUT_HIGH, p.Func())

	require.Eventually(func() bool {
		return dev.HasFrame([]byte{0xF4, 0x0D, 0x01}) && dev.HasFrame([]byte{0xF5, 0x0D, 0x01})
	}, testTimeout, 5*time.Millisecond)

	same, err := b.Pin(13)
	require.NoError(err)
	require.Same(p, same)

	_, err = b.Pin(99)
	require.ErrorIs(err, firmata.ErrUnknownPin)
}

func TestPin_InWaitForEdge(t *testing.T) {
	require := require.New(t)

	b, dev := newTestBoard(t)

	events := make(chan firmata.Event, 4)
	b.SetEventListener(firmata.EventListenerFunc(func(ev firmata.Event) { events <- ev }))

	p, err := b.Pin(2)
	require.NoError(err)
	require.ErrorIs(p.In(gpio.PullDown, gpio.NoEdge), ErrPullDown)
	require.NoError(p.In(gpio.PullUp, gpio.RisingEdge))
	require.Equal(gpio.PullUp, p.Pull())
	require.Equal(gpio.IN_HIGH, p.Func())

	require.False(p.WaitForEdge(20 * time.Millisecond))

	require.NoError(dev.SendDigital(0, 0x04))
	require.True(p.WaitForEdge(testTimeout))
	require.Equal(gpio.High, p.Read())

	ev := <-events
	require.Equal(2, ev.Pin)
	require.Equal(1, ev.Value)

	// a falling edge does not satisfy a rising edge wait
	require.NoError(dev.SendDigital(0, 0x00))
	<-events
	require.False(p.WaitForEdge(20 * time.Millisecond))

	require.NoError(p.Halt())
	require.False(p.WaitForEdge(time.Millisecond))
}

func TestPin_HaltReleasesWait(t *testing.T) {
	require := require.New(t)

	b, dev := newTestBoard(t)
	p, err := b.Pin(3)
	require.NoError(err)
	require.NoError(p.In(gpio.Float, gpio.BothEdges))
	require.Eventually(func() bool {
		return dev.HasFrame([]byte{0xD0, 0x01})
	}, testTimeout, 5*time.Millisecond)

	done := make(chan bool, 1)
	go func() { done <- p.WaitForEdge(-1) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(p.Halt())

	select {
	case got := <-done:
		require.False(got)
	case <-time.After(testTimeout):
		require.FailNow("WaitForEdge not released by Halt")
	}
}

func TestPin_PWM(t *testing.T) {
	require := require.New(t)

	b, dev := newTestBoard(t)

	p, err := b.Pin(3)
	require.NoError(err)
	require.Equal([]pin.Func{gpio.IN, gpio.OUT, gpio.IN_HIGH, gpio.PWM}, p.SupportedFuncs())

	require.NoError(p.PWM(gpio.DutyMax, physic.KiloHertz))
	require.Equal(gpio.PWM, p.Func())
	require.NoError(p.PWM(gpio.DutyHalf, 0))

	require.Eventually(func() bool {
		return dev.HasFrame([]byte{0xE3, 0x7F, 0x01}) && dev.HasFrame([]byte{0xE3, 0x7F, 0x00})
	}, testTimeout, 5*time.Millisecond)

	require.Error(p.PWM(-1, 0))

	noPWM, err := b.Pin(2)
	require.NoError(err)
	require.ErrorIs(noPWM.PWM(gpio.DutyHalf, 0), ErrUnsupportedFn)
	require.ErrorIs(noPWM.SetFunc(pin.Func("SPI_CLK")), ErrUnsupportedFn)
}

func TestPin_SetFunc(t *testing.T) {
	require := require.New(t)

	b, _ := newTestBoard(t)

	p, err := b.Pin(4)
	require.NoError(err)

	require.NoError(p.SetFunc(gpio.IN))
	require.Equal(gpio.IN, p.Func())
	require.Equal(gpio.Float, p.Pull())

	require.NoError(p.SetFunc(gpio.OUT_HIGH))
	require.Equal(gpio.OUT_HIGH, p.Func())
	require.Equal(gpio.PullNoChange, p.Pull())
}

func TestI2CBus_Tx(t *testing.T) {
	require := require.New(t)

	b, dev := newTestBoard(t)

	bus, err := b.I2CBus()
	require.NoError(err)
	again, err := b.I2CBus()
	require.NoError(err)
	require.Same(bus, again)

	rec := &i2ctest.Record{Bus: bus}
	d := &i2c.Dev{Bus: rec, Addr: 0x48}

	r := make([]byte, 3)
	require.NoError(d.Tx([]byte{0x10}, r))
	require.Equal([]byte{0x10, 0x11, 0x12}, r)

	require.NoError(d.Tx(nil, r[:2]))
	require.Equal([]byte{0x00, 0x01}, r[:2])

	require.NoError(d.Tx([]byte{0x00, 0xAE}, nil))
	require.Len(rec.Ops, 3)
	require.Equal(uint16(0x48), rec.Ops[0].Addr)

	require.Eventually(func() bool {
		return len(dev.SysexFrames(codec.SysexI2CRequest)) == 3 &&
			len(dev.SysexFrames(codec.SysexI2CConfig)) == 1
	}, testTimeout, 5*time.Millisecond)

	require.ErrorIs(bus.SetSpeed(400*physic.KiloHertz), ErrSetSpeed)
	require.Error(bus.Tx(0x400, nil, r))
	require.NoError(bus.Close())
	require.Equal("firmata-i2c", bus.String())
}
