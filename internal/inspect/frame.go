package inspect

import (
	"errors"
	"fmt"
	"io"

	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/packet"
)

// ReadFrame reads one length-prefixed packet from r. It returns io.EOF
// only when r ends cleanly between packets.
func ReadFrame(r io.Reader) (encrypt.RawBuffer, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read packet length: %w", err)
	}

	length := data.DecodeNumber(prefix[:])
	if length == 0 {
		return nil, fmt.Errorf("received zero-length packet")
	}

	raw := make(encrypt.RawBuffer, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("failed to read packet payload (%d bytes): %w", length, err)
	}
	return raw, nil
}

// WriteFrame writes raw to w with its length prefix.
func WriteFrame(w io.Writer, raw encrypt.RawBuffer) error {
	framed, err := packet.Frame(raw)
	if err != nil {
		return fmt.Errorf("failed to frame packet: %w", err)
	}
	if _, err := w.Write(framed); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	return nil
}
