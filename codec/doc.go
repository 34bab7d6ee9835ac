// Package codec implements the Firmata wire format: command byte constants,
// the 7-bit-clean numeric and binary encodings, outbound message builders and
// the decoder that turns inbound frames into [Response] values.
//
// All functions in this package are pure. They hold no state and are safe for
// concurrent use.
//
// # Framing
//
// Two framing styles share one byte stream. Short commands are a single
// command byte, usually carrying a bank, channel or pin number in its low
// nibble, followed by a fixed number of data bytes:
//
//	0x90|bank     lsb msb    digital bank value (8 pins)
//	0xE0|channel  lsb msb    analog channel value
//	0xC0|channel  0/1        enable/disable analog channel reporting
//	0xD0|bank     0/1        enable/disable digital bank reporting
//	0xF4          pin mode   set pin mode
//	0xF5          pin value  set a single digital pin
//	0xF9          maj min    protocol version
//
// Extended (sysex) frames are delimited by [StartSysex] and [EndSysex] and
// carry a command id followed by an arbitrary number of 7-bit data bytes.
//
// # Encodings
//
// Every byte on the wire except command bytes and the sysex markers has its
// most significant bit clear. Integers up to 14 bits travel as an LSB/MSB pair
// ([EncodeValue]); larger integers use 7-bit groups ([EncodeVarValue]); opaque
// binary payloads are repacked with [To7BitArray] and restored with
// [From7BitArray]; text travels two bytes per character ([EncodeString]).
package codec
