package codec

import "fmt"

// MessageType is a plain (non-sysex) command byte. Range commands carry the
// bank or channel number in the low nibble.
type MessageType uint8

const (
	DigitalMessage   MessageType = 0x90 // 0x90-0x9F: bank, lsb, msb
	ReportAnalog     MessageType = 0xC0 // 0xC0-0xCF: channel, 0/1
	ReportDigital    MessageType = 0xD0 // 0xD0-0xDF: bank, 0/1
	AnalogMessage    MessageType = 0xE0 // 0xE0-0xEF: channel, lsb, msb
	StartSysex       MessageType = 0xF0
	SetPinModeCmd    MessageType = 0xF4 // pin, mode
	SetDigitalPinCmd MessageType = 0xF5 // pin, value
	EndSysex         MessageType = 0xF7
	ReportVersion    MessageType = 0xF9 // major, minor
	SystemReset      MessageType = 0xFF
)

const (
	rangeCommandMask    byte = 0xF0
	rangeCommandPayload byte = 0x0F
)

// IsDigitalMessage reports whether b is a digital bank value command.
func IsDigitalMessage(b byte) bool {
	return b&rangeCommandMask == byte(DigitalMessage)
}

// IsAnalogMessage reports whether b is an analog channel value command.
func IsAnalogMessage(b byte) bool {
	return b&rangeCommandMask == byte(AnalogMessage)
}

// RangeIndex returns the bank or channel number carried by a range command.
func RangeIndex(b byte) int {
	return int(b & rangeCommandPayload)
}

func (m MessageType) String() string {
	switch m & MessageType(rangeCommandMask) {
	case DigitalMessage:
		return "DigitalMessage"
	case AnalogMessage:
		return "AnalogMessage"
	case ReportAnalog:
		return "ReportAnalog"
	case ReportDigital:
		return "ReportDigital"
	}

	switch m {
	case StartSysex:
		return "StartSysex"
	case SetPinModeCmd:
		return "SetPinMode"
	case SetDigitalPinCmd:
		return "SetDigitalPin"
	case EndSysex:
		return "EndSysex"
	case ReportVersion:
		return "ReportVersion"
	case SystemReset:
		return "SystemReset"
	}

	return fmt.Sprintf("Unknown(0x%02X)", byte(m))
}

// SysexCmd is the command id that follows [StartSysex].
type SysexCmd uint8

const (
	SysexFeatureReport         SysexCmd = 0x65
	SysexAnalogMappingQuery    SysexCmd = 0x69
	SysexAnalogMappingResponse SysexCmd = 0x6A
	SysexCapabilityQuery       SysexCmd = 0x6B
	SysexCapabilityResponse    SysexCmd = 0x6C
	SysexPinStateQuery         SysexCmd = 0x6D
	SysexPinStateResponse      SysexCmd = 0x6E
	SysexExtendedAnalog        SysexCmd = 0x6F
	SysexServoConfig           SysexCmd = 0x70
	SysexStringData            SysexCmd = 0x71
	SysexI2CRequest            SysexCmd = 0x76
	SysexI2CReply              SysexCmd = 0x77
	SysexI2CConfig             SysexCmd = 0x78
	SysexReportFirmware        SysexCmd = 0x79
	SysexSamplingInterval      SysexCmd = 0x7A
	SysexScheduler             SysexCmd = 0x7B

	// SysexUserFeatureF is a user-defined id that stock firmware leaves
	// unimplemented. The shutdown handshake sends it to provoke the device's
	// "unhandled sysex" diagnostic.
	SysexUserFeatureF SysexCmd = 0x0F
)

var sysexCmdNames = map[SysexCmd]string{
	SysexFeatureReport:         "FeatureReport",
	SysexAnalogMappingQuery:    "AnalogMappingQuery",
	SysexAnalogMappingResponse: "AnalogMappingResponse",
	SysexCapabilityQuery:       "CapabilityQuery",
	SysexCapabilityResponse:    "CapabilityResponse",
	SysexPinStateQuery:         "PinStateQuery",
	SysexPinStateResponse:      "PinStateResponse",
	SysexExtendedAnalog:        "ExtendedAnalog",
	SysexServoConfig:           "ServoConfig",
	SysexStringData:            "StringData",
	SysexI2CRequest:            "I2CRequest",
	SysexI2CReply:              "I2CReply",
	SysexI2CConfig:             "I2CConfig",
	SysexReportFirmware:        "ReportFirmware",
	SysexSamplingInterval:      "SamplingInterval",
	SysexScheduler:             "Scheduler",
	SysexUserFeatureF:          "UserFeatureF",
}

func (c SysexCmd) String() string {
	if name, ok := sysexCmdNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Unknown(0x%02X)", byte(c))
}

// Feature report sub-commands.
const (
	featureQuery    byte = 0x00
	featureResponse byte = 0x01
)

// SchedulerCmd is the instruction byte of a scheduler sysex frame.
type SchedulerCmd uint8

const (
	SchedulerCreateTask     SchedulerCmd = 0
	SchedulerDeleteTask     SchedulerCmd = 1
	SchedulerAddToTask      SchedulerCmd = 2
	SchedulerDelayTask      SchedulerCmd = 3
	SchedulerScheduleTask   SchedulerCmd = 4
	SchedulerQueryAllTasks  SchedulerCmd = 5
	SchedulerQueryTask      SchedulerCmd = 6
	SchedulerReset          SchedulerCmd = 7
	SchedulerErrorReply     SchedulerCmd = 8
	SchedulerQueryAllReply  SchedulerCmd = 9
	SchedulerQueryTaskReply SchedulerCmd = 10
)

// MaxTaskID is the highest scheduler task id.
const MaxTaskID = 127

// PinMode is a Firmata pin mode as carried on the wire.
type PinMode uint8

const (
	PinModeDigitalInput  PinMode = 0x00
	PinModeDigitalOutput PinMode = 0x01
	PinModeAnalogInput   PinMode = 0x02
	PinModePWM           PinMode = 0x03
	PinModeServo         PinMode = 0x04
	PinModeShift         PinMode = 0x05
	PinModeI2C           PinMode = 0x06
	PinModeOneWire       PinMode = 0x07
	PinModeStepper       PinMode = 0x08
	PinModeEncoder       PinMode = 0x09
	PinModeSerial        PinMode = 0x0A
	PinModeInputPullUp   PinMode = 0x0B
	PinModeSPI           PinMode = 0x0C
	PinModeSonar         PinMode = 0x0D
	PinModeTone          PinMode = 0x0E
	PinModeDHT           PinMode = 0x0F
	PinModeFrequency     PinMode = 0x10
	PinModeUnknown       PinMode = 0x7E

	// PinModeIgnore terminates the capability list of a pin and marks pins
	// without an analog channel in the analog mapping response.
	PinModeIgnore PinMode = 0x7F
)

var pinModeNames = map[PinMode]string{
	PinModeDigitalInput:  "DigitalInput",
	PinModeDigitalOutput: "DigitalOutput",
	PinModeAnalogInput:   "AnalogInput",
	PinModePWM:           "PWM",
	PinModeServo:         "Servo",
	PinModeShift:         "Shift",
	PinModeI2C:           "I2C",
	PinModeOneWire:       "OneWire",
	PinModeStepper:       "Stepper",
	PinModeEncoder:       "Encoder",
	PinModeSerial:        "Serial",
	PinModeInputPullUp:   "InputPullUp",
	PinModeSPI:           "SPI",
	PinModeSonar:         "Sonar",
	PinModeTone:          "Tone",
	PinModeDHT:           "DHT",
	PinModeFrequency:     "Frequency",
}

func (m PinMode) String() string {
	if name, ok := pinModeNames[m]; ok {
		return name
	}

	return "Unknown"
}

// IsKnown reports whether m is one of the enumerated modes.
func (m PinMode) IsKnown() bool {
	_, ok := pinModeNames[m]
	return ok
}

// IsInput reports whether the pin state of m reflects a pull configuration
// rather than a last written value.
func (m PinMode) IsInput() bool {
	switch m {
	case PinModeDigitalInput, PinModeInputPullUp, PinModeAnalogInput:
		return true
	default:
		return false
	}
}

// ParsePinMode maps a wire byte to a PinMode, folding unlisted values into
// [PinModeUnknown].
func ParsePinMode(b byte) PinMode {
	m := PinMode(b)
	if m.IsKnown() {
		return m
	}

	return PinModeUnknown
}

// I2CMode selects the operation of an I2C request.
type I2CMode uint8

const (
	I2CWrite          I2CMode = 0b00
	I2CRead           I2CMode = 0b01
	I2CReadContinuous I2CMode = 0b10
	I2CStopReading    I2CMode = 0b11
)

const (
	i2cAutoRestartBit byte = 0b0100_0000
	i2cTenBitBit      byte = 0b0010_0000
	i2cModeShift           = 3
	i2cAddrMSBMask         = 0b0000_0111

	// MaxI2CAddress10Bit is the largest 10-bit I2C address.
	MaxI2CAddress10Bit = 0x3FF
	// MaxI2CAddress7Bit is the largest 7-bit I2C address.
	MaxI2CAddress7Bit = 0x7F
)
