package firmata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-firmata/codec"
	"github.com/arloliu/go-firmata/internal/firmatatest"
)

func TestEngine_DigitalOutputEvent(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	rec := newEventRecorder()
	e := startTestEngine(t, board.Device, WithEventListener(rec))

	require.NoError(e.SetPinMode(5, codec.PinModeDigitalOutput))
	require.Eventually(func() bool {
		return board.HasFrame([]byte{0xF4, 0x05, 0x01})
	}, testTimeout, 5*time.Millisecond)

	p, err := e.Pin(5)
	require.NoError(err)
	require.Equal(codec.PinModeDigitalOutput, p.Mode())
	require.True(p.Reporting())

	// bank 0 with only bit 5 set
	require.NoError(board.SendDigital(0, 0x20))

	ev := rec.next(t)
	require.Equal(codec.PortDigital, ev.Kind)
	require.Equal(5, ev.Pin)
	require.Equal(1, ev.Value)
	require.Positive(ev.EpochMillis)
	require.Positive(ev.MonoNanos)
	rec.requireNone(t, 100*time.Millisecond)

	require.Equal(1, p.Value())
	require.Equal(uint64(1), e.GetMetrics().Notifications.Load())
	require.Equal(uint64(1), e.GetMetrics().ListenerEvents.Load())
}

func TestEngine_DigitalInputEvent(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	rec := newEventRecorder()
	e := startTestEngine(t, board.Device, WithEventListener(rec))

	require.NoError(e.SetPinMode(10, codec.PinModeInputPullUp))
	require.NoError(e.EnableDigitalReporting(1, true))
	require.Eventually(func() bool {
		return board.HasFrame([]byte{0xD1, 0x01})
	}, testTimeout, 5*time.Millisecond)

	// one frame per operation, in call order
	frames := board.Frames()
	require.Equal([][]byte{{0xF4, 0x0A, 0x0B}, {0xD1, 0x01}}, frames[len(frames)-2:])

	require.NoError(board.SendDigital(1, 0x04))
	ev := rec.next(t)
	require.Equal(Event{Kind: codec.PortDigital, Pin: 10, Value: 1, EpochMillis: ev.EpochMillis, MonoNanos: ev.MonoNanos}, ev)

	require.NoError(board.SendDigital(1, 0x00))
	ev2 := rec.next(t)
	require.Equal(0, ev2.Value)
	require.GreaterOrEqual(ev2.MonoNanos, ev.MonoNanos)
}

func TestEngine_AnalogEvent(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	rec := newEventRecorder()
	e := startTestEngine(t, board.Device, WithEventListener(rec))

	require.NoError(e.SetPinMode(15, codec.PinModeAnalogInput))
	require.NoError(board.SendAnalog(1, 512))

	ev := rec.next(t)
	require.Equal(codec.PortAnalog, ev.Kind)
	require.Equal(15, ev.Pin)
	require.Equal(512, ev.Value)

	// channel 2 is not reporting
	require.NoError(board.SendAnalog(2, 100))
	rec.requireNone(t, 50*time.Millisecond)

	p, err := e.Pin(16)
	require.NoError(err)
	require.Equal(100, p.Value())
}

func TestEngine_AnalogAndDigitalPinsInOneBank(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	rec := newEventRecorder()
	e := startTestEngine(t, board.Device, WithEventListener(rec))

	// pins 10 and 14 share digital bank 1
	require.NoError(e.SetPinMode(14, codec.PinModeAnalogInput))
	require.NoError(e.SetPinMode(10, codec.PinModeInputPullUp))
	require.NoError(e.EnableDigitalReporting(1, true))

	require.NoError(board.SendAnalog(0, 700))
	require.NoError(board.SendDigital(1, 0x04))

	ev := rec.next(t)
	require.Equal(codec.PortAnalog, ev.Kind)
	require.Equal(14, ev.Pin)
	require.Equal(700, ev.Value)

	ev = rec.next(t)
	require.Equal(codec.PortDigital, ev.Kind)
	require.Equal(10, ev.Pin)
	require.Equal(1, ev.Value)
	rec.requireNone(t, 100*time.Millisecond)

	analog := mustPin(t, e, 14)
	require.Equal(700, analog.Value())

	require.NoError(e.EnableDigitalReporting(1, false))
	require.True(analog.Reporting())
	require.False(mustPin(t, e, 10).Reporting())

	require.NoError(board.SendAnalog(0, 650))
	ev = rec.next(t)
	require.Equal(14, ev.Pin)
	require.Equal(650, ev.Value)
}

func TestEngine_ListenerReplacedAndRemoved(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)
	require.NoError(e.SetPinMode(2, codec.PinModeDigitalOutput))

	rec := newEventRecorder()
	e.SetEventListener(rec)
	require.NoError(board.SendDigital(0, 0x04))
	require.Equal(2, rec.next(t).Pin)

	e.SetEventListener(nil)
	require.NoError(board.SendDigital(0, 0x00))
	rec.requireNone(t, 50*time.Millisecond)
}

func TestEngine_ListenerPanicRecovered(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	calls := make(chan struct{}, 4)
	e := startTestEngine(t, board.Device, WithEventListener(EventListenerFunc(func(Event) {
		calls <- struct{}{}
		panic("listener bug")
	})))
	require.NoError(e.SetPinMode(5, codec.PinModeDigitalOutput))

	require.NoError(board.SendDigital(0, 0x20))
	<-calls

	require.True(e.IsRunning())
	_, err := e.FirmwareDetails(testContext(t))
	require.NoError(err)
}

func TestEngine_SetPinModeErrors(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.ErrorIs(e.SetPinMode(0, codec.PinModePWM), ErrUnsupportedMode)
	require.ErrorIs(e.SetPinMode(42, codec.PinModeDigitalOutput), ErrUnknownPin)
	require.ErrorIs(e.SetDigitalValue(42, true), ErrUnknownPin)
}

func TestEngine_SetDigitalValue(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.SetDigitalValue(13, true))
	require.Eventually(func() bool {
		return board.HasFrame([]byte{0xF5, 0x0D, 0x01})
	}, testTimeout, 5*time.Millisecond)

	p, err := e.Pin(13)
	require.NoError(err)
	require.Equal(1, p.Value())

	require.NoError(e.SetDigitalBank(1, 0x21))
	require.Eventually(func() bool {
		return board.HasFrame([]byte{0x91, 0x21, 0x00})
	}, testTimeout, 5*time.Millisecond)
	require.Equal(1, mustPin(t, e, 8).Value())
	require.Equal(0, mustPin(t, e, 9).Value())
	require.Equal(1, mustPin(t, e, 13).Value())
}

func mustPin(t testing.TB, e *Engine, index int) *Pin {
	t.Helper()

	p, err := e.Pin(index)
	require.NoError(t, err)

	return p
}

func TestEngine_SetValue(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.SetPinMode(3, codec.PinModePWM))
	require.Equal(255, mustPin(t, e, 3).MaxValue())

	require.NoError(e.SetValue(3, 255))
	require.Eventually(func() bool {
		return board.HasFrame([]byte{0xE3, 0x7F, 0x01})
	}, testTimeout, 5*time.Millisecond)
	require.Equal(255, mustPin(t, e, 3).Value())

	require.ErrorIs(e.SetValue(3, 256), codec.ErrValueOutOfRange)
}

func TestEngine_ConfigureServo(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.ConfigureServo(9, 544, 2400))
	require.Equal(codec.PinModeServo, mustPin(t, e, 9).Mode())

	frame, err := codec.ServoConfig(9, 544, 2400)
	require.NoError(err)
	require.Eventually(func() bool { return board.HasFrame(frame) }, testTimeout, 5*time.Millisecond)

	require.NoError(e.SetValue(9, 90))
}

func TestEngine_Reporting(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.EnableDigitalReporting(1, true))
	for i := 8; i < 16; i++ {
		require.True(mustPin(t, e, i).Reporting())
	}
	require.NoError(e.EnableAnalogReporting(0, true))
	require.True(mustPin(t, e, 14).Reporting())
	require.NoError(e.EnableAnalogReporting(0, false))
	require.False(mustPin(t, e, 14).Reporting())

	require.Eventually(func() bool {
		return board.HasFrame([]byte{0xD1, 0x01}) && board.HasFrame([]byte{0xC0, 0x00})
	}, testTimeout, 5*time.Millisecond)
}

func TestEngine_SystemReset(t *testing.T) {
	require := require.New(t)

	board := firmatatest.NewBoard(t)
	e := startTestEngine(t, board.Device)

	require.NoError(e.SetPinMode(5, codec.PinModeDigitalOutput))
	require.NoError(e.SetDigitalValue(5, true))
	require.NoError(e.SystemReset())

	p := mustPin(t, e, 5)
	require.Equal(codec.PinModeUnknown, p.Mode())
	require.Zero(p.Value())
	require.False(p.Reporting())
	require.Eventually(func() bool { return board.HasFrame([]byte{0xFF}) }, testTimeout, 5*time.Millisecond)
}
