package codec

import (
	"encoding/binary"
	"fmt"
)

// taskHeaderLen is the unpacked size of time(4) + length(2) + position(2).
const taskHeaderLen = 8

func shortFrame(cmd SysexCmd, want, got int) error {
	return fmt.Errorf("%w: %s needs %d payload bytes, got %d", ErrShortFrame, cmd, want, got)
}

// DecodeSysex decodes the body of a sysex frame: the command id followed by
// the payload, without the start and end markers.
//
// Command ids without a known response yield (nil, nil). A payload shorter
// than its command requires yields [ErrShortFrame].
func DecodeSysex(body []byte) (Response, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty sysex body", ErrShortFrame)
	}

	cmd := SysexCmd(body[0])
	payload := body[1:]

	switch cmd {
	case SysexStringData:
		return StringDiagnostic{Text: DecodeString(payload)}, nil
	case SysexReportFirmware:
		return decodeFirmware(payload)
	case SysexFeatureReport:
		return decodeFeatures(payload)
	case SysexCapabilityResponse:
		return decodeCapabilities(payload)
	case SysexPinStateResponse:
		return decodePinState(payload)
	case SysexAnalogMappingResponse:
		return decodeAnalogMapping(payload), nil
	case SysexI2CReply:
		return decodeI2CReply(payload)
	case SysexScheduler:
		return decodeScheduler(payload)
	default:
		return nil, nil
	}
}

// DecodeVersion decodes the two data bytes of a protocol version report.
func DecodeVersion(major, minor byte) ProtocolVersion {
	return ProtocolVersion{Major: int(major), Minor: int(minor)}
}

// DecodeValueOnPort decodes a digital bank or analog channel value report.
func DecodeValueOnPort(cmd, lsb, msb byte) (ValueOnPort, error) {
	v := ValueOnPort{Index: RangeIndex(cmd), Value: DecodeValue(lsb, msb)}
	switch {
	case IsDigitalMessage(cmd):
		v.Port = PortDigital
	case IsAnalogMessage(cmd):
		v.Port = PortAnalog
	default:
		return ValueOnPort{}, fmt.Errorf("%w: 0x%02X is not a value report", ErrValueOutOfRange, cmd)
	}

	return v, nil
}

func decodeFirmware(p []byte) (Response, error) {
	if len(p) < 2 {
		return nil, shortFrame(SysexReportFirmware, 2, len(p))
	}

	return FirmwareDetails{
		Major: int(p[0]),
		Minor: int(p[1]),
		Name:  DecodeString(p[2:]),
	}, nil
}

// decodeFeatures parses "0x01 (id major minor)*". An id of 0 introduces a
// two byte extended id.
func decodeFeatures(p []byte) (Response, error) {
	if len(p) == 0 {
		return nil, shortFrame(SysexFeatureReport, 1, 0)
	}
	if p[0] != featureResponse {
		// a query echoed back by a loopback transport
		return nil, nil
	}

	features := Features{}
	for i := 1; i < len(p); {
		id := int(p[i])
		i++
		if id == 0 {
			if i+2 > len(p) {
				return nil, shortFrame(SysexFeatureReport, i+2, len(p))
			}
			id = DecodeValue(p[i], p[i+1])
			i += 2
		}
		if i+2 > len(p) {
			return nil, shortFrame(SysexFeatureReport, i+2, len(p))
		}
		features.Entries = append(features.Entries, Feature{ID: id, Major: int(p[i]), Minor: int(p[i+1])})
		i += 2
	}

	return features, nil
}

func decodeCapabilities(p []byte) (Response, error) {
	caps := Capabilities{}
	current := []Capability{}

	for i := 0; i < len(p); {
		if PinMode(p[i]) == PinModeIgnore {
			caps.Pins = append(caps.Pins, current)
			current = []Capability{}
			i++

			continue
		}
		if i+1 >= len(p) {
			return nil, shortFrame(SysexCapabilityResponse, i+2, len(p))
		}
		current = append(current, Capability{Mode: ParsePinMode(p[i]), Resolution: int(p[i+1])})
		i += 2
	}

	if len(current) > 0 {
		return nil, fmt.Errorf("%w: capability list of pin %d not terminated", ErrShortFrame, len(caps.Pins))
	}

	return caps, nil
}

func decodePinState(p []byte) (Response, error) {
	if len(p) < 2 {
		return nil, shortFrame(SysexPinStateResponse, 2, len(p))
	}

	return PinState{
		Pin:   int(p[0]),
		Mode:  ParsePinMode(p[1]),
		State: DecodeVarValue(p[2:]),
	}, nil
}

func decodeAnalogMapping(p []byte) Response {
	m := AnalogMapping{Channels: make([]int, len(p))}
	for pin, b := range p {
		if PinMode(b) == PinModeIgnore {
			m.Channels[pin] = NoAnalogChannel
		} else {
			m.Channels[pin] = int(b)
		}
	}

	return m
}

func decodeI2CReply(p []byte) (Response, error) {
	if len(p) < 4 {
		return nil, shortFrame(SysexI2CReply, 4, len(p))
	}

	return I2CReply{
		Address:  DecodeValue(p[0], p[1]),
		Register: DecodeValue(p[2], p[3]),
		Data:     DecodeBytes(p[4:]),
	}, nil
}

func decodeScheduler(p []byte) (Response, error) {
	if len(p) == 0 {
		return nil, shortFrame(SysexScheduler, 1, 0)
	}

	switch SchedulerCmd(p[0]) {
	case SchedulerQueryAllReply:
		ids := make([]int, 0, len(p)-1)
		for _, b := range p[1:] {
			ids = append(ids, int(b))
		}

		return SchedulerAllTasks{TaskIDs: ids}, nil

	case SchedulerQueryTaskReply, SchedulerErrorReply:
		if len(p) < 2 {
			return nil, shortFrame(SysexScheduler, 2, len(p))
		}
		detail := SchedulerTaskDetail{
			TaskID: int(p[1]),
			Error:  SchedulerCmd(p[0]) == SchedulerErrorReply,
		}
		if len(p) == 2 {
			return detail, nil
		}

		raw := From7BitArray(p[2:])
		if len(raw) < taskHeaderLen {
			return nil, fmt.Errorf("%w: task %d header has %d bytes", ErrShortFrame, detail.TaskID, len(raw))
		}
		detail.Exists = true
		detail.Time = binary.LittleEndian.Uint32(raw[0:4])
		detail.Length = int(binary.LittleEndian.Uint16(raw[4:6]))
		detail.Position = int(binary.LittleEndian.Uint16(raw[6:8]))
		detail.Payload = raw[taskHeaderLen:]

		return detail, nil

	default:
		return nil, nil
	}
}
