// Package packet stamps and checks EO packet headers on top of the data,
// encrypt and sequence packages. It performs no I/O: callers hand it the
// bytes they read from and write to their own connections.
package packet

import (
	"fmt"

	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
)

// Header identifies a packet. Action comes first on the wire.
type Header struct {
	Action byte
	Family byte
}

// InitHeader marks connection init packets, which are never obfuscated
// and carry no sequence.
var InitHeader = Header{Action: 0xFF, Family: 0xFF}

func (h Header) String() string {
	return fmt.Sprintf("%02x/%02x", h.Family, h.Action)
}

// IsInit reports whether h is the connection init header.
func (h Header) IsInit() bool {
	return h == InitHeader
}

// Packet is a decoded packet. Sequence is -1 for packets without one.
type Packet struct {
	Header
	Sequence int
	Body     data.PlainBuffer
}

// HasSequence reports whether the packet carried a sequence field.
func (p *Packet) HasSequence() bool {
	return p.Sequence >= 0
}

// Frame prefixes raw with its length as an EO short.
func Frame(raw encrypt.RawBuffer) ([]byte, error) {
	prefix, err := data.EncodeNumber(len(raw), data.Width2)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(prefix)+len(raw))
	out = append(out, prefix...)
	return append(out, raw...), nil
}

// Unframe splits the first length-prefixed packet off b. When b does not
// yet hold a whole packet the error wraps data.ErrOutOfBounds and the
// caller should wait for more bytes.
func Unframe(b []byte) (raw encrypt.RawBuffer, rest []byte, err error) {
	r := data.NewReader(b)
	n, err := r.GetShort()
	if err != nil {
		return nil, b, err
	}
	body, err := r.GetBytes(n)
	if err != nil {
		return nil, b, err
	}
	return encrypt.RawBuffer(body), b[r.Position():], nil
}
