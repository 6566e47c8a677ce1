// Package data implements the EO data stream primitives: the base-253
// number encoding, the printable string transform, and the Reader and
// Writer cursors that compose them over a plain (decrypted) buffer.
//
// Packet and file-record types are not defined here. They are built on
// top of Reader and Writer field by field.
package data

// Width is the size in bytes of an encoded number field.
type Width int

const (
	Width1 Width = 1 // EO "char"
	Width2 Width = 2 // EO "short"
	Width3 Width = 3 // EO "three"
	Width4 Width = 4 // EO "int"
)

// Exclusive upper bounds for each field width.
const (
	CharMax  = 253
	ShortMax = CharMax * CharMax
	ThreeMax = CharMax * CharMax * CharMax
	IntMax   = uint64(ThreeMax) * CharMax
)

const (
	// BreakByte delimits chunks. Number and string encoding never emit it.
	BreakByte byte = 0xFF

	// AbsentByte fills unused high positions of a number and decodes as 0.
	AbsentByte byte = 0xFE
)

var positionWeights = [4]uint64{1, CharMax, ShortMax, ThreeMax}

// MaxValue returns the largest value representable in the given width.
func MaxValue(w Width) uint64 {
	switch w {
	case Width1:
		return CharMax - 1
	case Width2:
		return ShortMax - 1
	case Width3:
		return ThreeMax - 1
	case Width4:
		return IntMax - 1
	}
	return 0
}

// EncodeNumber encodes value into exactly width bytes. Each byte holds a
// base-253 digit plus one, least significant first.
func EncodeNumber(value int, width Width) ([]byte, error) {
	if width < Width1 || width > Width4 || value < 0 || uint64(value) > MaxValue(width) {
		return nil, &RangeError{Value: value, Width: width}
	}
	full := EncodeNumberFull(uint64(value))
	out := make([]byte, width)
	copy(out, full[:width])
	return out, nil
}

// EncodeNumberFull returns the four byte form of value. Positions above
// the most significant digit hold AbsentByte. Values of IntMax or more
// are reduced modulo IntMax.
func EncodeNumberFull(value uint64) [4]byte {
	out := [4]byte{AbsentByte, AbsentByte, AbsentByte, AbsentByte}
	value %= IntMax
	original := value

	for i := 3; i >= 1; i-- {
		if original >= positionWeights[i] {
			out[i] = byte(value/positionWeights[i]) + 1
			value %= positionWeights[i]
		}
	}
	out[0] = byte(value) + 1
	return out
}

// DecodeNumber decodes up to four bytes. Missing positions, AbsentByte and
// 0x00 all contribute zero.
func DecodeNumber(b []byte) int {
	var result uint64
	for i := 0; i < len(b) && i < 4; i++ {
		digit := b[i]
		if digit == 0 || digit == AbsentByte {
			continue
		}
		result += uint64(digit-1) * positionWeights[i]
	}
	return int(result)
}
