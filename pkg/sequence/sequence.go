// Package sequence tracks the per-connection packet sequence counter.
//
// A State is owned by exactly one connection. It is not safe for
// concurrent use; callers that process a connection on more than one
// goroutine must serialize access themselves (see packet.Session).
package sequence

import (
	"errors"
	"fmt"

	"github.com/eolink-project/eolink/pkg/data"
)

// Modulus bounds the counter added to the start value.
const Modulus = 10

var (
	ErrUninitialized    = errors.New("sequence: not seeded")
	ErrSequenceMismatch = errors.New("sequence: mismatch")
)

// MismatchError carries both sides of a failed Verify.
type MismatchError struct {
	Expected int
	Received int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: expected %d, received %d", ErrSequenceMismatch, e.Expected, e.Received)
}

func (e *MismatchError) Unwrap() error { return ErrSequenceMismatch }

// Phase is the lifecycle position of a State.
type Phase int

const (
	Uninitialized Phase = iota
	Seeded
	Running
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Seeded:
		return "seeded"
	case Running:
		return "running"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the sequence counter of one connection. The zero value is
// Uninitialized.
type State struct {
	phase   Phase
	start   int
	counter int
}

// New returns a State already seeded with start.
func New(start int) *State {
	s := &State{}
	s.SetStart(start)
	return s
}

// Seed sets the start from the pair sent in the handshake init reply.
func (s *State) Seed(s1, s2 int) {
	s.SetStart(InitStart(s1, s2))
}

// SeedPing sets the start from the pair carried by a connection ping.
// The counter keeps running.
func (s *State) SeedPing(s1, s2 int) {
	s.start = PingStart(s1, s2)
	if s.phase == Uninitialized {
		s.phase = Seeded
	}
}

// SetStart sets the start value and resets the counter.
func (s *State) SetStart(start int) {
	s.start = start
	s.counter = 0
	s.phase = Seeded
}

// Start returns the start value.
func (s *State) Start() int {
	return s.start
}

// Phase returns the lifecycle position.
func (s *State) Phase() Phase {
	return s.phase
}

// Current returns the sequence value without changing it.
func (s *State) Current() (int, error) {
	if s.phase == Uninitialized {
		return 0, ErrUninitialized
	}
	return s.start + s.counter, nil
}

// Advance steps the counter and returns the new value.
func (s *State) Advance() (int, error) {
	if s.phase == Uninitialized {
		return 0, ErrUninitialized
	}
	s.counter = (s.counter + 1) % Modulus
	s.phase = Running
	return s.start + s.counter, nil
}

// Matches reports whether v equals the current value. It never changes
// the state and is false before seeding.
func (s *State) Matches(v int) bool {
	cur, err := s.Current()
	return err == nil && cur == v
}

// Verify is Matches with an error describing the mismatch.
func (s *State) Verify(v int) error {
	cur, err := s.Current()
	if err != nil {
		return err
	}
	if cur != v {
		return &MismatchError{Expected: cur, Received: v}
	}
	return nil
}

// HeaderWidth is the width a sequence value occupies in a packet header.
func HeaderWidth(v int) data.Width {
	if v < data.CharMax {
		return data.Width1
	}
	return data.Width2
}
