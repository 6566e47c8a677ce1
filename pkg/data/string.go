package data

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Bounds of the byte range touched by the string transform.
const (
	printableMin = 34
	printableMid = 79
	printableMax = 125
)

// EncodeString applies the EO string transform used for map names, sign
// text and other "encoded" string fields. The input is not modified.
//
// The transform substitutes every byte in 34..125 based on the parity of
// its index and the input length, then reverses the result.
// DecodeString(EncodeString(b)) returns b for every input. For odd lengths
// the transform is its own inverse.
func EncodeString(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	substitute(out)
	reverse(out)
	return out
}

// DecodeString reverses EncodeString. The input is not modified.
func DecodeString(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	reverse(out)
	substitute(out)
	return out
}

func substitute(buf []byte) {
	parity := (len(buf) + 1) % 2
	for i, c := range buf {
		if c < printableMin || c > printableMax {
			continue
		}
		switch {
		case i%2 != parity:
			buf[i] = printableMax - c + printableMin
		case c <= printableMid:
			buf[i] = printableMid - c + printableMin
		default:
			buf[i] = printableMax - c + printableMid + 1
		}
	}
}

func reverse(buf []byte) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// StringToBytes converts a Go string to its Windows-1252 wire bytes. Runes
// with no Windows-1252 mapping are replaced.
//
// Encoders carry transform state, so one is created per call.
func StringToBytes(s string) []byte {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// BytesToString converts Windows-1252 wire bytes to a Go string.
func BytesToString(b []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
