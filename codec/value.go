package codec

import (
	"encoding/binary"
)

const (
	sevenBitMask = 0x7F

	// MaxValue14 is the largest value an LSB/MSB pair can carry.
	MaxValue14 = 1<<14 - 1
)

// EncodeValue splits a 14-bit value into its low and high 7-bit groups.
// Bits above bit 13 are discarded.
func EncodeValue(v int) (lsb, msb byte) {
	return byte(v) & sevenBitMask, byte(v>>7) & sevenBitMask
}

// DecodeValue is the inverse of [EncodeValue].
func DecodeValue(lsb, msb byte) int {
	return int(msb&sevenBitMask)<<7 | int(lsb&sevenBitMask)
}

// EncodeVarValue encodes v as 7-bit groups, least significant first.
// At least one group is emitted; a uint32 never needs more than five.
func EncodeVarValue(v uint32) []byte {
	out := make([]byte, 0, 5)
	for {
		out = append(out, byte(v)&sevenBitMask)
		v >>= 7
		if v == 0 {
			return out
		}
	}
}

// DecodeVarValue is the inverse of [EncodeVarValue]. Groups beyond the fifth
// are ignored.
func DecodeVarValue(in []byte) uint32 {
	var v uint32
	for i, b := range in {
		if i >= 5 {
			break
		}
		v |= uint32(b&sevenBitMask) << (7 * i)
	}

	return v
}

// To7BitArray packs arbitrary bytes into a 7-bit-clean sequence. For n input
// bytes it emits ceil(n*8/7) bytes.
func To7BitArray(in []byte) []byte {
	out := make([]byte, 0, (len(in)*8+6)/7)

	var previous byte
	shift := 0
	for _, b := range in {
		if shift == 0 {
			out = append(out, b&sevenBitMask)
			shift++
			previous = b >> 7

			continue
		}

		out = append(out, ((b<<shift)&sevenBitMask)|previous)
		if shift == 6 {
			out = append(out, b>>1)
			shift = 0
		} else {
			shift++
			previous = b >> (8 - shift)
		}
	}

	if shift > 0 {
		out = append(out, previous)
	}

	return out
}

// From7BitArray restores bytes packed by [To7BitArray]. For m encoded bytes it
// returns floor(m*7/8) bytes.
func From7BitArray(in []byte) []byte {
	n := len(in) * 7 >> 3
	out := make([]byte, n)
	for i := range out {
		j := i << 3
		pos := j / 7
		shift := byte(j % 7)
		out[i] = (in[pos] >> shift) | (in[pos+1] << (7 - shift))
	}

	return out
}

// Encode32 packs a 32-bit value as four little-endian bytes run through
// [To7BitArray], the layout used by scheduler time fields.
func Encode32(v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)

	return To7BitArray(buf[:])
}

// EncodeString carries each byte of s as its low 7 bits followed by its top
// bit.
func EncodeString(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		out = append(out, c&sevenBitMask, c>>7)
	}

	return out
}

// DecodeString reassembles a two-bytes-per-character payload into 8-bit
// characters and interprets them as UTF-8. A trailing odd byte is decoded as
// if its high partner were zero.
func DecodeString(in []byte) string {
	out := make([]byte, 0, (len(in)+1)/2)
	for i := 0; i < len(in); i += 2 {
		c := in[i] & sevenBitMask
		if i+1 < len(in) {
			c |= in[i+1] << 7
		}
		out = append(out, c)
	}

	return string(out)
}

// EncodeBytes carries each byte as an LSB/MSB pair. It is the per-byte form
// used by I2C payloads.
func EncodeBytes(in []byte) []byte {
	out := make([]byte, 0, len(in)*2)
	for _, b := range in {
		lsb, msb := EncodeValue(int(b))
		out = append(out, lsb, msb)
	}

	return out
}

// DecodeBytes is the inverse of [EncodeBytes]. A trailing odd byte is decoded
// as if its high partner were zero.
func DecodeBytes(in []byte) []byte {
	out := make([]byte, 0, (len(in)+1)/2)
	for i := 0; i < len(in); i += 2 {
		var msb byte
		if i+1 < len(in) {
			msb = in[i+1]
		}
		out = append(out, byte(DecodeValue(in[i], msb)))
	}

	return out
}
