// Package encrypt implements the EO packet obfuscation transforms and the
// pipelines that convert between plain and raw (wire) buffers.
//
// None of this is cryptography. The transforms are reproduced bit for bit
// so that peers can read each other's packets.
package encrypt

import "github.com/eolink-project/eolink/pkg/data"

// RawBuffer holds obfuscated bytes exactly as they travel on the wire.
type RawBuffer []byte

// Clone returns an independent copy of the buffer.
func (b RawBuffer) Clone() RawBuffer {
	if b == nil {
		return nil
	}
	out := make(RawBuffer, len(b))
	copy(out, b)
	return out
}

// Passthrough reports whether b is left alone by the pipelines. Buffers
// of two bytes or fewer and connection init packets (leading FF FF) are
// never obfuscated.
func Passthrough(b []byte) bool {
	return len(b) <= 2 || (b[0] == data.BreakByte && b[1] == data.BreakByte)
}

// EncryptPacket obfuscates a plain packet for sending:
// SwapMultiples, then FlipMSB, then Interleave.
//
// A plain packet whose result starts with FF FF cannot be told apart from
// an init packet, so DecryptPacket returns it unchanged.
func EncryptPacket(p data.PlainBuffer, multiple int) RawBuffer {
	if Passthrough(p) {
		return RawBuffer(p.Clone())
	}
	return RawBuffer(Interleave(FlipMSB(SwapMultiples(p, multiple))))
}

// DecryptPacket reverses EncryptPacket:
// Deinterleave, then FlipMSB, then SwapMultiples.
func DecryptPacket(r RawBuffer, multiple int) data.PlainBuffer {
	if Passthrough(r) {
		return data.PlainBuffer(r.Clone())
	}
	return data.PlainBuffer(SwapMultiples(FlipMSB(Deinterleave(r)), multiple))
}
