package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrValueOutOfRange indicates an argument that cannot be represented on
	// the wire.
	ErrValueOutOfRange = errors.New("codec: value out of range")

	// ErrShortFrame indicates an inbound frame whose payload is shorter than
	// its command requires.
	ErrShortFrame = errors.New("codec: frame too short")
)

const (
	maxPin      = 127
	maxRangeIdx = 15
)

func checkRange(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s %d not in [%d, %d]", ErrValueOutOfRange, name, v, lo, hi)
	}

	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}

	return 0
}

// Sysex wraps a command id and payload in sysex markers.
func Sysex(cmd SysexCmd, payload ...byte) []byte {
	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, byte(StartSysex), byte(cmd))
	frame = append(frame, payload...)

	return append(frame, byte(EndSysex))
}

// SetPinMode builds a set-pin-mode command.
func SetPinMode(pin int, mode PinMode) ([]byte, error) {
	if err := checkRange("pin", pin, 0, maxPin); err != nil {
		return nil, err
	}
	if !mode.IsKnown() {
		return nil, fmt.Errorf("%w: pin mode 0x%02X", ErrValueOutOfRange, byte(mode))
	}

	return []byte{byte(SetPinModeCmd), byte(pin), byte(mode)}, nil
}

// SetDigitalPin builds a set-single-digital-pin command.
func SetDigitalPin(pin int, high bool) ([]byte, error) {
	if err := checkRange("pin", pin, 0, maxPin); err != nil {
		return nil, err
	}

	return []byte{byte(SetDigitalPinCmd), byte(pin), boolByte(high)}, nil
}

// SetDigitalBank builds a write of all 8 pins of a bank; bit i of mask is pin
// bank*8+i.
func SetDigitalBank(bank int, mask uint8) ([]byte, error) {
	if err := checkRange("bank", bank, 0, maxRangeIdx); err != nil {
		return nil, err
	}
	lsb, msb := EncodeValue(int(mask))

	return []byte{byte(DigitalMessage) | byte(bank), lsb, msb}, nil
}

// ReportDigitalBank enables or disables value reporting for a digital bank.
func ReportDigitalBank(bank int, enable bool) ([]byte, error) {
	if err := checkRange("bank", bank, 0, maxRangeIdx); err != nil {
		return nil, err
	}

	return []byte{byte(ReportDigital) | byte(bank), boolByte(enable)}, nil
}

// ReportAnalogChannel enables or disables value reporting for an analog
// channel.
func ReportAnalogChannel(channel int, enable bool) ([]byte, error) {
	if err := checkRange("channel", channel, 0, maxRangeIdx); err != nil {
		return nil, err
	}

	return []byte{byte(ReportAnalog) | byte(channel), boolByte(enable)}, nil
}

// SamplingInterval sets the device's input sampling period in milliseconds.
func SamplingInterval(ms int) ([]byte, error) {
	if err := checkRange("sampling interval", ms, 0, MaxValue14); err != nil {
		return nil, err
	}
	lsb, msb := EncodeValue(ms)

	return Sysex(SysexSamplingInterval, lsb, msb), nil
}

// SetValue builds an analog/PWM style write. Pins below 16 with values that
// fit 14 bits use the 3-byte analog message; everything else uses the
// extended analog sysex with a variable-length value.
func SetValue(pin int, value uint32) ([]byte, error) {
	if err := checkRange("pin", pin, 0, maxPin); err != nil {
		return nil, err
	}

	if pin <= maxRangeIdx && value <= MaxValue14 {
		lsb, msb := EncodeValue(int(value))
		return []byte{byte(AnalogMessage) | byte(pin), lsb, msb}, nil
	}

	payload := append([]byte{byte(pin)}, EncodeVarValue(value)...)

	return Sysex(SysexExtendedAnalog, payload...), nil
}

// ServoConfig sets the pulse width range, in microseconds, of a servo pin.
func ServoConfig(pin, minPulse, maxPulse int) ([]byte, error) {
	if err := checkRange("pin", pin, 0, maxPin); err != nil {
		return nil, err
	}
	if err := checkRange("min pulse", minPulse, 0, MaxValue14); err != nil {
		return nil, err
	}
	if err := checkRange("max pulse", maxPulse, minPulse, MaxValue14); err != nil {
		return nil, err
	}

	minLSB, minMSB := EncodeValue(minPulse)
	maxLSB, maxMSB := EncodeValue(maxPulse)

	return Sysex(SysexServoConfig, byte(pin), minLSB, minMSB, maxLSB, maxMSB), nil
}

// I2CConfig sets the delay, in microseconds, between an I2C write and the
// following read.
func I2CConfig(delayMicros int) ([]byte, error) {
	if err := checkRange("i2c delay", delayMicros, 0, MaxValue14); err != nil {
		return nil, err
	}
	lsb, msb := EncodeValue(delayMicros)

	return Sysex(SysexI2CConfig, lsb, msb), nil
}

// I2CRequest describes one I2C operation.
type I2CRequest struct {
	Address     int
	TenBit      bool
	AutoRestart bool
	Mode        I2CMode

	// Register is sent before the byte count of read requests when
	// HasRegister is set. Writes to a register carry it as the first data
	// byte instead.
	Register    int
	HasRegister bool

	// Count is the number of bytes to read.
	Count int

	// Data is written by I2CWrite requests.
	Data []byte
}

// header encodes the 2-byte address header.
func (r I2CRequest) header() (byte, byte, error) {
	maxAddr := MaxI2CAddress7Bit
	if r.TenBit {
		maxAddr = MaxI2CAddress10Bit
	}
	if err := checkRange("i2c address", r.Address, 0, maxAddr); err != nil {
		return 0, 0, err
	}
	if r.Mode > I2CStopReading {
		return 0, 0, fmt.Errorf("%w: i2c mode %d", ErrValueOutOfRange, r.Mode)
	}

	b1 := byte(r.Address) & sevenBitMask
	b2 := byte(r.Mode) << i2cModeShift
	if r.AutoRestart {
		b2 |= i2cAutoRestartBit
	}
	if r.TenBit {
		b2 |= i2cTenBitBit | byte(r.Address>>7)&i2cAddrMSBMask
	}

	return b1, b2, nil
}

// EncodeI2CRequest builds an I2C request sysex.
func EncodeI2CRequest(r I2CRequest) ([]byte, error) {
	b1, b2, err := r.header()
	if err != nil {
		return nil, err
	}

	payload := []byte{b1, b2}

	switch r.Mode {
	case I2CWrite:
		data := r.Data
		if r.HasRegister {
			if err := checkRange("i2c register", r.Register, 0, 0xFF); err != nil {
				return nil, err
			}
			data = append([]byte{byte(r.Register)}, data...)
		}
		payload = append(payload, EncodeBytes(data)...)

	case I2CRead, I2CReadContinuous:
		if r.HasRegister {
			if err := checkRange("i2c register", r.Register, 0, MaxValue14); err != nil {
				return nil, err
			}
			lsb, msb := EncodeValue(r.Register)
			payload = append(payload, lsb, msb)
		}
		if err := checkRange("i2c read count", r.Count, 0, MaxValue14); err != nil {
			return nil, err
		}
		lsb, msb := EncodeValue(r.Count)
		payload = append(payload, lsb, msb)

	case I2CStopReading:
	}

	return Sysex(SysexI2CRequest, payload...), nil
}

// FirmwareQuery asks for the firmware name and version.
func FirmwareQuery() []byte { return Sysex(SysexReportFirmware) }

// FeatureQuery asks for the extended feature report.
func FeatureQuery() []byte { return Sysex(SysexFeatureReport, featureQuery) }

// CapabilityQuery asks for the mode/resolution table of every pin.
func CapabilityQuery() []byte { return Sysex(SysexCapabilityQuery) }

// AnalogMappingQuery asks for the pin-to-analog-channel mapping.
func AnalogMappingQuery() []byte { return Sysex(SysexAnalogMappingQuery) }

// VersionQuery asks for the protocol version.
func VersionQuery() []byte { return []byte{byte(ReportVersion)} }

// Reset asks the device to reset its pins and features.
func Reset() []byte { return []byte{byte(SystemReset)} }

// PinStateQuery asks for the mode and state of one pin.
func PinStateQuery(pin int) ([]byte, error) {
	if err := checkRange("pin", pin, 0, maxPin); err != nil {
		return nil, err
	}

	return Sysex(SysexPinStateQuery, byte(pin)), nil
}

func scheduler(cmd SchedulerCmd, payload ...byte) []byte {
	return Sysex(SysexScheduler, append([]byte{byte(cmd)}, payload...)...)
}

// CreateTask reserves a task buffer of length bytes under id.
func CreateTask(id, length int) ([]byte, error) {
	if err := checkRange("task id", id, 0, MaxTaskID); err != nil {
		return nil, err
	}
	if err := checkRange("task length", length, 0, MaxValue14); err != nil {
		return nil, err
	}
	lsb, msb := EncodeValue(length)

	return scheduler(SchedulerCreateTask, byte(id), lsb, msb), nil
}

// DeleteTask removes a task.
func DeleteTask(id int) ([]byte, error) {
	if err := checkRange("task id", id, 0, MaxTaskID); err != nil {
		return nil, err
	}

	return scheduler(SchedulerDeleteTask, byte(id)), nil
}

// AddToTask appends payload, 7-bit packed, to a task buffer.
func AddToTask(id int, payload []byte) ([]byte, error) {
	if err := checkRange("task id", id, 0, MaxTaskID); err != nil {
		return nil, err
	}

	return scheduler(SchedulerAddToTask, append([]byte{byte(id)}, To7BitArray(payload)...)...), nil
}

// DelayTask suspends the currently running task for ms milliseconds. It is
// only meaningful inside task payloads.
func DelayTask(ms uint32) []byte {
	return scheduler(SchedulerDelayTask, Encode32(ms)...)
}

// ScheduleTask runs a task ms milliseconds from now.
func ScheduleTask(id int, ms uint32) ([]byte, error) {
	if err := checkRange("task id", id, 0, MaxTaskID); err != nil {
		return nil, err
	}

	return scheduler(SchedulerScheduleTask, append([]byte{byte(id)}, Encode32(ms)...)...), nil
}

// QueryAllTasks asks for the ids of every task on the device.
func QueryAllTasks() []byte { return scheduler(SchedulerQueryAllTasks) }

// QueryTask asks for the details of one task.
func QueryTask(id int) ([]byte, error) {
	if err := checkRange("task id", id, 0, MaxTaskID); err != nil {
		return nil, err
	}

	return scheduler(SchedulerQueryTask, byte(id)), nil
}

// ResetScheduler deletes every task.
func ResetScheduler() []byte { return scheduler(SchedulerReset) }
