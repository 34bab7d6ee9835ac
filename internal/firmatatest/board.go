package firmatatest

import (
	"encoding/binary"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/arloliu/go-firmata/codec"
)

// Default firmware identity of a Board.
const (
	FirmwareName  = "StandardFirmata.ino"
	FirmwareMajor = 2
	FirmwareMinor = 5
)

// Board is a Device answering the queries of a StandardFirmata sketch on an
// Uno class board, plus the scheduler.
type Board struct {
	*Device

	mu    sync.Mutex
	tasks map[int]*boardTask
	pins  [][]codec.Capability
}

type boardTask struct {
	length  int
	payload []byte
}

// BoardOption configures a Board.
type BoardOption func(*boardOptions)

type boardOptions struct {
	pins     [][]codec.Capability
	analog   map[int]int
	features []codec.Feature
}

// WithPins replaces the capability list.
func WithPins(pins [][]codec.Capability) BoardOption {
	return func(o *boardOptions) { o.pins = pins }
}

// WithAnalogPins replaces the pin to analog channel mapping.
func WithAnalogPins(m map[int]int) BoardOption {
	return func(o *boardOptions) { o.analog = m }
}

// WithFeatures makes the board answer the feature query. Without it the
// query gets the unhandled diagnostic.
func WithFeatures(features ...codec.Feature) BoardOption {
	return func(o *boardOptions) { o.features = features }
}

// UnoPins returns the capabilities of an Uno: 20 digital pins, PWM and servo
// on 3, 5, 6, 9, 10 and 11, analog input on 14 to 19 and I2C on 18 and 19.
func UnoPins() [][]codec.Capability {
	pins := make([][]codec.Capability, 20)
	for i := range pins {
		caps := []codec.Capability{
			{Mode: codec.PinModeDigitalInput, Resolution: 1},
			{Mode: codec.PinModeDigitalOutput, Resolution: 1},
			{Mode: codec.PinModeInputPullUp, Resolution: 1},
		}
		switch i {
		case 3, 5, 6, 9, 10, 11:
			caps = append(caps,
				codec.Capability{Mode: codec.PinModePWM, Resolution: 8},
				codec.Capability{Mode: codec.PinModeServo, Resolution: 14})
		}
		if i >= 14 {
			caps = append(caps, codec.Capability{Mode: codec.PinModeAnalogInput, Resolution: 10})
		}
		if i == 18 || i == 19 {
			caps = append(caps, codec.Capability{Mode: codec.PinModeI2C, Resolution: 1})
		}
		pins[i] = caps
	}

	return pins
}

// UnoAnalogPins maps pins 14 to 19 to analog channels 0 to 5.
func UnoAnalogPins() map[int]int {
	m := make(map[int]int, 6)
	for ch := 0; ch < 6; ch++ {
		m[14+ch] = ch
	}

	return m
}

// acceptedSysex are commands StandardFirmata executes without a reply.
// Tests that need I2C replies replace the I2C request handler, e.g. with
// [I2CEcho].
var acceptedSysex = []codec.SysexCmd{
	codec.SysexI2CConfig,
	codec.SysexI2CRequest,
	codec.SysexServoConfig,
	codec.SysexSamplingInterval,
	codec.SysexExtendedAnalog,
}

// NewBoard creates a board device.
func NewBoard(t testing.TB, opts ...BoardOption) *Board {
	t.Helper()

	o := &boardOptions{pins: UnoPins(), analog: UnoAnalogPins()}
	for _, opt := range opts {
		opt(o)
	}

	b := &Board{Device: NewDevice(t), tasks: make(map[int]*boardTask), pins: o.pins}

	b.OnSysex(codec.SysexReportFirmware, func(d *Device, _ []byte) {
		_ = d.SendSysex(codec.SysexReportFirmware, FirmwareResponse(FirmwareName, FirmwareMajor, FirmwareMinor)...)
	})
	b.OnSysex(codec.SysexCapabilityQuery, func(d *Device, _ []byte) {
		_ = d.SendSysex(codec.SysexCapabilityResponse, CapabilityResponse(o.pins)...)
	})
	b.OnSysex(codec.SysexAnalogMappingQuery, func(d *Device, _ []byte) {
		_ = d.SendSysex(codec.SysexAnalogMappingResponse, AnalogMappingResponse(len(o.pins), o.analog)...)
	})
	if o.features != nil {
		b.OnSysex(codec.SysexFeatureReport, func(d *Device, _ []byte) {
			_ = d.SendSysex(codec.SysexFeatureReport, FeatureResponse(o.features...)...)
		})
	}
	b.OnSysex(codec.SysexScheduler, b.handleScheduler)
	for _, cmd := range acceptedSysex {
		b.OnSysex(cmd, func(*Device, []byte) {})
	}
	b.OnCommand(byte(codec.ReportVersion), func(d *Device, _ []byte) {
		_ = d.Send(byte(codec.ReportVersion), FirmwareMajor, FirmwareMinor)
	})

	return b
}

// Tasks returns the ids of the tasks stored on the board.
func (b *Board) Tasks() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Sorted(maps.Keys(b.tasks))
}

// TaskPayload returns the decoded payload of task id.
func (b *Board) TaskPayload(id int) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[id]
	if !ok {
		return nil, false
	}

	return slices.Clone(t.payload), true
}

// AddTask stores a task as if another host had created it.
func (b *Board) AddTask(id int, payload []byte) {
	b.mu.Lock()
	b.tasks[id] = &boardTask{length: len(payload), payload: slices.Clone(payload)}
	b.mu.Unlock()
}

func (b *Board) handleScheduler(d *Device, body []byte) {
	if len(body) < 2 {
		return
	}
	args := body[2:]

	b.mu.Lock()
	defer b.mu.Unlock()

	switch codec.SchedulerCmd(body[1]) {
	case codec.SchedulerCreateTask:
		if len(args) < 3 {
			return
		}
		b.tasks[int(args[0])] = &boardTask{length: codec.DecodeValue(args[1], args[2])}

	case codec.SchedulerDeleteTask:
		if len(args) > 0 {
			delete(b.tasks, int(args[0]))
		}

	case codec.SchedulerAddToTask:
		if len(args) == 0 {
			return
		}
		t, ok := b.tasks[int(args[0])]
		if !ok {
			_ = d.SendSysex(codec.SysexScheduler, byte(codec.SchedulerErrorReply), args[0])
			return
		}
		t.payload = append(t.payload, codec.From7BitArray(args[1:])...)

	case codec.SchedulerQueryAllTasks:
		ids := slices.Sorted(maps.Keys(b.tasks))
		reply := []byte{byte(codec.SchedulerQueryAllReply)}
		for _, id := range ids {
			reply = append(reply, byte(id))
		}
		_ = d.SendSysex(codec.SysexScheduler, reply...)

	case codec.SchedulerQueryTask:
		if len(args) == 0 {
			return
		}
		id := int(args[0])
		t, ok := b.tasks[id]
		if !ok {
			_ = d.SendSysex(codec.SysexScheduler, byte(codec.SchedulerQueryTaskReply), byte(id))
			return
		}
		_ = d.SendSysex(codec.SysexScheduler, TaskReply(codec.SchedulerQueryTaskReply, id, 0, t.length, len(t.payload), t.payload)...)

	case codec.SchedulerReset:
		clear(b.tasks)
	}
}

// FirmwareResponse builds the payload of a firmware report.
func FirmwareResponse(name string, major, minor int) []byte {
	return append([]byte{byte(major), byte(minor)}, codec.EncodeString(name)...)
}

// CapabilityResponse builds the payload of a capability response.
func CapabilityResponse(pins [][]codec.Capability) []byte {
	var out []byte
	for _, caps := range pins {
		for _, c := range caps {
			out = append(out, byte(c.Mode), byte(c.Resolution))
		}
		out = append(out, byte(codec.PinModeIgnore))
	}

	return out
}

// AnalogMappingResponse builds the payload of an analog mapping response for
// numPins pins; pins missing from m have no channel.
func AnalogMappingResponse(numPins int, m map[int]int) []byte {
	out := make([]byte, numPins)
	for pin := range out {
		if ch, ok := m[pin]; ok {
			out[pin] = byte(ch)
		} else {
			out[pin] = byte(codec.PinModeIgnore)
		}
	}

	return out
}

// FeatureResponse builds the payload of a feature report.
func FeatureResponse(features ...codec.Feature) []byte {
	out := []byte{0x01}
	for _, f := range features {
		if f.ID > 0x7F {
			lsb, msb := codec.EncodeValue(f.ID)
			out = append(out, 0, lsb, msb)
		} else {
			out = append(out, byte(f.ID))
		}
		out = append(out, byte(f.Major), byte(f.Minor))
	}

	return out
}

// TaskReply builds the payload of a scheduler task reply or error reply.
func TaskReply(cmd codec.SchedulerCmd, id int, time uint32, length, position int, payload []byte) []byte {
	raw := make([]byte, 8, 8+len(payload))
	binary.LittleEndian.PutUint32(raw[0:], time)
	binary.LittleEndian.PutUint16(raw[4:], uint16(length))
	binary.LittleEndian.PutUint16(raw[6:], uint16(position))
	raw = append(raw, payload...)

	return append([]byte{byte(cmd), byte(id)}, codec.To7BitArray(raw)...)
}

// I2CEcho answers I2C read requests with count bytes counting up from the
// register number. Other I2C modes are ignored.
func I2CEcho(d *Device, body []byte) {
	p := body[1:]
	if len(p) < 2 {
		return
	}
	addr := int(p[0]) | int(p[1]&0x07)<<7
	if codec.I2CMode((p[1]>>3)&0x03) != codec.I2CRead {
		return
	}

	args := codec.DecodeBytes(p[2:])
	reg, count := 0, 0
	switch len(args) {
	case 1:
		count = int(args[0])
	case 2:
		reg, count = int(args[0]), int(args[1])
	}

	data := make([]byte, count)
	for i := range data {
		data[i] = byte(reg + i)
	}

	_ = d.SendSysex(codec.SysexI2CReply, I2CReplyPayload(addr, reg, data)...)
}

// I2CReplyPayload builds the body of an I2C reply sysex.
func I2CReplyPayload(addr, reg int, data []byte) []byte {
	alsb, amsb := codec.EncodeValue(addr)
	rlsb, rmsb := codec.EncodeValue(reg)

	return append([]byte{alsb, amsb, rlsb, rmsb}, codec.EncodeBytes(data)...)
}
