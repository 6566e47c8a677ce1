package sequence

import (
	"errors"
	"testing"

	"github.com/eolink-project/eolink/pkg/data"
)

func TestStateUninitialized(t *testing.T) {
	var s State
	if s.Phase() != Uninitialized {
		t.Fatalf("Phase() = %v, want uninitialized", s.Phase())
	}
	if _, err := s.Current(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Current() error = %v, want ErrUninitialized", err)
	}
	if _, err := s.Advance(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Advance() error = %v, want ErrUninitialized", err)
	}
	if s.Matches(0) {
		t.Error("Matches(0) = true before seeding")
	}
	if err := s.Verify(0); !errors.Is(err, ErrUninitialized) {
		t.Errorf("Verify(0) error = %v, want ErrUninitialized", err)
	}
	if s.Phase() != Uninitialized {
		t.Errorf("Phase() = %v after failed calls, want uninitialized", s.Phase())
	}
}

func TestStateSeed(t *testing.T) {
	tests := []struct {
		name string
		seed func(*State)
		want int
	}{
		{"init_pair", func(s *State) { s.Seed(20, 5) }, 20*7 + 5 - 13},
		{"ping_pair", func(s *State) { s.SeedPing(150, 30) }, 120},
		{"set_start", func(s *State) { s.SetStart(77) }, 77},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s State
			tc.seed(&s)
			if s.Phase() != Seeded {
				t.Errorf("Phase() = %v, want seeded", s.Phase())
			}
			got, err := s.Current()
			if err != nil {
				t.Fatalf("Current() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Current() = %d, want %d", got, tc.want)
			}
			if s.Start() != tc.want {
				t.Errorf("Start() = %d, want %d", s.Start(), tc.want)
			}
		})
	}
}

func TestStateAdvanceWraps(t *testing.T) {
	s := New(100)
	first, _ := s.Current()

	seen := make([]int, 0, Modulus)
	for i := 0; i < Modulus; i++ {
		v, err := s.Advance()
		if err != nil {
			t.Fatalf("Advance() error: %v", err)
		}
		seen = append(seen, v)
	}
	if s.Phase() != Running {
		t.Errorf("Phase() = %v, want running", s.Phase())
	}
	if seen[0] != 101 || seen[Modulus-2] != 109 {
		t.Errorf("Advance() values = %v, want 101..109 then 100", seen)
	}
	if last := seen[Modulus-1]; last != first {
		t.Errorf("value after %d advances = %d, want %d", Modulus, last, first)
	}
}

func TestStateMatchesDoesNotMutate(t *testing.T) {
	s := New(10)
	_, _ = s.Advance()

	if s.Matches(99) {
		t.Error("Matches(99) = true, want false")
	}
	if !s.Matches(11) {
		t.Error("Matches(11) = false, want true")
	}
	if cur, _ := s.Current(); cur != 11 {
		t.Errorf("Current() = %d after Matches, want 11", cur)
	}
}

func TestStateVerify(t *testing.T) {
	s := New(40)
	if err := s.Verify(40); err != nil {
		t.Fatalf("Verify(40) error: %v", err)
	}

	err := s.Verify(41)
	if !errors.Is(err, ErrSequenceMismatch) {
		t.Fatalf("Verify(41) error = %v, want ErrSequenceMismatch", err)
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error %T is not *MismatchError", err)
	}
	if mismatch.Expected != 40 || mismatch.Received != 41 {
		t.Errorf("MismatchError = %+v, want Expected=40 Received=41", mismatch)
	}
}

func TestSeedPingKeepsCounter(t *testing.T) {
	s := New(10)
	_, _ = s.Advance()
	_, _ = s.Advance()

	s.SeedPing(60, 10)
	cur, err := s.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur != 52 {
		t.Errorf("Current() = %d after ping reseed, want 52", cur)
	}
	if s.Phase() != Running {
		t.Errorf("Phase() = %v, want running", s.Phase())
	}
}

func TestHeaderWidth(t *testing.T) {
	tests := []struct {
		v    int
		want data.Width
	}{
		{0, data.Width1},
		{data.CharMax - 1, data.Width1},
		{data.CharMax, data.Width2},
		{400, data.Width2},
	}
	for _, tc := range tests {
		if got := HeaderWidth(tc.v); got != tc.want {
			t.Errorf("HeaderWidth(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestPhaseString(t *testing.T) {
	if got := Running.String(); got != "running" {
		t.Errorf("Running.String() = %q", got)
	}
	if got := Phase(9).String(); got != "phase(9)" {
		t.Errorf("Phase(9).String() = %q", got)
	}
}
