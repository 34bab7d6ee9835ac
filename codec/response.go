package codec

import "fmt"

// Kind discriminates the concrete type of a [Response].
type Kind uint8

const (
	KindStringDiagnostic Kind = iota + 1
	KindFirmwareDetails
	KindFeatures
	KindCapabilities
	KindPinState
	KindAnalogMapping
	KindI2CReply
	KindSchedulerAllTasks
	KindSchedulerTaskDetail
	KindProtocolVersion
	KindValueOnPort
	KindPoison
)

var kindNames = [...]string{
	KindStringDiagnostic:    "StringDiagnostic",
	KindFirmwareDetails:     "FirmwareDetails",
	KindFeatures:            "Features",
	KindCapabilities:        "Capabilities",
	KindPinState:            "PinState",
	KindAnalogMapping:       "AnalogMapping",
	KindI2CReply:            "I2CReply",
	KindSchedulerAllTasks:   "SchedulerAllTasks",
	KindSchedulerTaskDetail: "SchedulerTaskDetail",
	KindProtocolVersion:     "ProtocolVersion",
	KindValueOnPort:         "ValueOnPort",
	KindPoison:              "Poison",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Response is a decoded inbound frame. The set of implementations is closed;
// switch on the concrete type or on Kind.
type Response interface {
	Kind() Kind
	isResponse()
}

// StringDiagnostic is a text message sent by the device, e.g. an error report.
type StringDiagnostic struct {
	Text string
}

// FirmwareDetails identifies the firmware running on the device.
type FirmwareDetails struct {
	Major int
	Minor int
	Name  string
}

func (f FirmwareDetails) String() string {
	return fmt.Sprintf("%s %d.%d", f.Name, f.Major, f.Minor)
}

// Feature is one entry of the extended feature report.
type Feature struct {
	ID    int
	Major int
	Minor int
}

// Features lists the optional firmware features the device implements.
type Features struct {
	Entries []Feature
}

// Has reports whether the feature with the given id is listed.
func (f Features) Has(id int) bool {
	for _, e := range f.Entries {
		if e.ID == id {
			return true
		}
	}

	return false
}

// Capability is one function a pin supports and the resolution of its value.
type Capability struct {
	Mode       PinMode
	Resolution int
}

// Max returns the largest value representable at the capability's resolution.
func (c Capability) Max() int {
	if c.Resolution <= 0 {
		return 0
	}

	return 1<<c.Resolution - 1
}

// Capabilities holds the capability list of every pin, indexed by pin number.
type Capabilities struct {
	Pins [][]Capability
}

// PinState is the device's view of a pin. For output modes State is the last
// written value; for input modes it is the pull configuration.
type PinState struct {
	Pin   int
	Mode  PinMode
	State uint32
}

// NoAnalogChannel marks pins without an analog channel in [AnalogMapping].
const NoAnalogChannel = -1

// AnalogMapping holds the analog channel of every pin, indexed by pin number.
type AnalogMapping struct {
	Channels []int
}

// PinsByChannel returns the reverse mapping from analog channel to pin.
func (m AnalogMapping) PinsByChannel() map[int]int {
	out := make(map[int]int, len(m.Channels))
	for pin, ch := range m.Channels {
		if ch != NoAnalogChannel {
			out[ch] = pin
		}
	}

	return out
}

// I2CReply carries data read from an I2C peripheral.
type I2CReply struct {
	Address  int
	Register int
	Data     []byte
}

// SchedulerAllTasks lists the ids of every task stored on the device.
type SchedulerAllTasks struct {
	TaskIDs []int
}

// SchedulerTaskDetail describes one scheduler task. Exists is false when the
// device reported no task under TaskID. Error is set when the frame was a
// scheduler error reply rather than a query reply.
type SchedulerTaskDetail struct {
	TaskID   int
	Time     uint32
	Length   int
	Position int
	Payload  []byte
	Exists   bool
	Error    bool
}

// ProtocolVersion is the Firmata protocol version implemented by the device.
type ProtocolVersion struct {
	Major int
	Minor int
}

// PortKind tells whether a [ValueOnPort] concerns a digital bank or an analog
// channel.
type PortKind uint8

const (
	PortDigital PortKind = iota
	PortAnalog
)

func (k PortKind) String() string {
	if k == PortAnalog {
		return "ANALOG"
	}

	return "DIGITAL"
}

// ValueOnPort is an unsolicited value report. For digital ports Index is the
// bank and Value its 8-pin bit mask; for analog ports Index is the channel.
type ValueOnPort struct {
	Port  PortKind
	Index int
	Value int
}

// Poison is never decoded from the wire. The engine enqueues it during
// shutdown to release blocked requests.
type Poison struct{}

func (StringDiagnostic) Kind() Kind    { return KindStringDiagnostic }
func (FirmwareDetails) Kind() Kind     { return KindFirmwareDetails }
func (Features) Kind() Kind            { return KindFeatures }
func (Capabilities) Kind() Kind        { return KindCapabilities }
func (PinState) Kind() Kind            { return KindPinState }
func (AnalogMapping) Kind() Kind       { return KindAnalogMapping }
func (I2CReply) Kind() Kind            { return KindI2CReply }
func (SchedulerAllTasks) Kind() Kind   { return KindSchedulerAllTasks }
func (SchedulerTaskDetail) Kind() Kind { return KindSchedulerTaskDetail }
func (ProtocolVersion) Kind() Kind     { return KindProtocolVersion }
func (ValueOnPort) Kind() Kind         { return KindValueOnPort }
func (Poison) Kind() Kind              { return KindPoison }

func (StringDiagnostic) isResponse()    {}
func (FirmwareDetails) isResponse()     {}
func (Features) isResponse()            {}
func (Capabilities) isResponse()        {}
func (PinState) isResponse()            {}
func (AnalogMapping) isResponse()       {}
func (I2CReply) isResponse()            {}
func (SchedulerAllTasks) isResponse()   {}
func (SchedulerTaskDetail) isResponse() {}
func (ProtocolVersion) isResponse()     {}
func (ValueOnPort) isResponse()         {}
func (Poison) isResponse()              {}
