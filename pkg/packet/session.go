package packet

import (
	"fmt"
	"sync"

	"github.com/eolink-project/eolink/pkg/data"
	"github.com/eolink-project/eolink/pkg/encrypt"
	"github.com/eolink-project/eolink/pkg/sequence"
)

// Session holds one connection's packet state: its sequence counter and
// the swap multiples for each direction. All methods are safe for
// concurrent use; a connection's reader and writer goroutines may share
// one Session.
//
// Client packets carry a sequence value after the header. Server packets
// do not. A client uses EncodeClient and DecodeServer; a server uses
// DecodeClient and EncodeServer.
type Session struct {
	mu           sync.Mutex
	seq          sequence.State
	sendMultiple int
	recvMultiple int
}

// NewSession creates a session that obfuscates outgoing packets with
// sendMultiple and incoming ones with recvMultiple. The sequence starts
// uninitialized.
func NewSession(sendMultiple, recvMultiple int) *Session {
	return &Session{sendMultiple: sendMultiple, recvMultiple: recvMultiple}
}

// SetMultiples replaces the swap multiples, as done once the handshake
// completes.
func (s *Session) SetMultiples(send, recv int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendMultiple, s.recvMultiple = send, recv
}

// Multiples returns the send and receive swap multiples.
func (s *Session) Multiples() (send, recv int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendMultiple, s.recvMultiple
}

// Seed seeds the sequence from an init reply pair.
func (s *Session) Seed(s1, s2 int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.Seed(s1, s2)
}

// SeedPing reseeds the sequence from a ping pair.
func (s *Session) SeedPing(s1, s2 int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.SeedPing(s1, s2)
}

// SetSequenceStart seeds the sequence with a known start value.
func (s *Session) SetSequenceStart(start int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.SetStart(start)
}

// Sequence returns the current sequence value and phase.
func (s *Session) Sequence() (int, sequence.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.seq.Current()
	return v, s.seq.Phase(), err
}

// EncodeClient builds and obfuscates a client packet. The sequence is
// advanced only when the packet is built.
func (s *Session) EncodeClient(h Header, body data.PlainBuffer) (encrypt.RawBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.IsInit() {
		return s.encode(h, -1, body, 0)
	}

	next := s.seq
	v, err := next.Advance()
	if err != nil {
		return nil, err
	}
	raw, err := s.encode(h, v, body, s.sendMultiple)
	if err != nil {
		return nil, err
	}
	s.seq = next
	return raw, nil
}

// EncodeServer builds and obfuscates a server packet.
func (s *Session) EncodeServer(h Header, body data.PlainBuffer) (encrypt.RawBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encode(h, -1, body, s.sendMultiple)
}

// DecodeClient reverses EncodeClient and checks the sequence value.
//
// On a mismatch the decoded packet is returned together with a
// *sequence.MismatchError and the counter is left where it was, so a
// replayed packet does not move it.
func (s *Session) DecodeClient(raw encrypt.RawBuffer) (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := data.NewReader(encrypt.DecryptPacket(raw, s.recvMultiple))
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.IsInit() {
		return &Packet{Header: h, Sequence: -1, Body: r.ReadRemaining()}, nil
	}

	next := s.seq
	want, err := next.Advance()
	if err != nil {
		return nil, err
	}
	got, err := r.GetNumber(sequence.HeaderWidth(want))
	if err != nil {
		return nil, err
	}
	p := &Packet{Header: h, Sequence: got, Body: r.ReadRemaining()}
	if err := next.Verify(got); err != nil {
		return p, err
	}
	s.seq = next
	return p, nil
}

// DecodeServer reverses EncodeServer.
func (s *Session) DecodeServer(raw encrypt.RawBuffer) (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := data.NewReader(encrypt.DecryptPacket(raw, s.recvMultiple))
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	return &Packet{Header: h, Sequence: -1, Body: r.ReadRemaining()}, nil
}

func (s *Session) encode(h Header, seq int, body data.PlainBuffer, multiple int) (encrypt.RawBuffer, error) {
	w := data.NewWriterWithCapacity(len(body) + 4)
	if err := w.AddByte(h.Action); err != nil {
		return nil, err
	}
	if err := w.AddByte(h.Family); err != nil {
		return nil, err
	}
	if seq >= 0 {
		if err := w.AddNumber(seq, sequence.HeaderWidth(seq)); err != nil {
			return nil, fmt.Errorf("sequence %d: %w", seq, err)
		}
	}
	if err := w.AddBytes(body); err != nil {
		return nil, err
	}
	plain, err := w.Finish()
	if err != nil {
		return nil, err
	}
	return encrypt.EncryptPacket(plain, multiple), nil
}

func readHeader(r *data.Reader) (Header, error) {
	b, err := r.GetBytes(2)
	if err != nil {
		return Header{}, err
	}
	return Header{Action: b[0], Family: b[1]}, nil
}
