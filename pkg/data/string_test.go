package data

import (
	"bytes"
	"testing"
)

func TestEncodeStringKnownValue(t *testing.T) {
	plain := []byte("Void")
	wire := []byte{0x69, 0x36, 0x5E, 0x49}

	if got := EncodeString(plain); !bytes.Equal(got, wire) {
		t.Errorf("EncodeString(%q) = % x, want % x", plain, got, wire)
	}
	if got := DecodeString(wire); !bytes.Equal(got, plain) {
		t.Errorf("DecodeString(% x) = %q, want %q", wire, got, plain)
	}
}

func TestEncodeStringDoesNotModifyInput(t *testing.T) {
	in := []byte("Hello, World")
	before := append([]byte(nil), in...)
	_ = EncodeString(in)
	_ = DecodeString(in)
	if !bytes.Equal(in, before) {
		t.Errorf("input modified: got %q, want %q", in, before)
	}
}

func TestStringTransformRoundTrip(t *testing.T) {
	base := []byte("The quick brown fox jumps over the lazy dog! 0123456789 {|}~")
	for n := 0; n <= len(base); n++ {
		in := base[:n]
		encoded := EncodeString(in)
		if len(encoded) != len(in) {
			t.Fatalf("len(EncodeString(%q)) = %d, want %d", in, len(encoded), len(in))
		}
		if got := DecodeString(encoded); !bytes.Equal(got, in) {
			t.Errorf("DecodeString(EncodeString(%q)) = %q", in, got)
		}
	}
}

func TestStringTransformOddLengthIsInvolution(t *testing.T) {
	tests := []string{"a", "Hello", "Wanderer", "abcdefghi"}
	for _, s := range tests {
		in := []byte(s)
		if len(in)%2 == 0 {
			in = append(in, '!')
		}
		twice := EncodeString(EncodeString(in))
		if !bytes.Equal(twice, in) {
			t.Errorf("EncodeString twice on %q = %q", in, twice)
		}
	}
}

func TestStringTransformLeavesOutsideRangeBytes(t *testing.T) {
	in := []byte{0x00, 0x20, 0x21, 0x7E, 0x7F, 0xFE, 0xFF}
	encoded := EncodeString(in)
	want := []byte{0xFF, 0xFE, 0x7F, 0x7E, 0x21, 0x20, 0x00}
	if !bytes.Equal(encoded, want) {
		t.Errorf("EncodeString(% x) = % x, want % x", in, encoded, want)
	}
}

func TestStringTransformPrintableNeverBreaks(t *testing.T) {
	in := make([]byte, 0, printableMax-printableMin+1)
	for c := printableMin; c <= printableMax; c++ {
		in = append(in, byte(c))
	}
	for n := 1; n <= len(in); n++ {
		if out := EncodeString(in[:n]); bytes.IndexByte(out, BreakByte) >= 0 {
			t.Fatalf("EncodeString(%q) contains the break byte", in[:n])
		}
	}
}

func TestWindows1252Conversion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "abc", []byte("abc")},
		{"latin1", "é", []byte{0xE9}},
		{"euro", "€", []byte{0x80}},
		{"y_diaeresis", "ÿ", []byte{0xFF}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := StringToBytes(tc.in)
			if !bytes.Equal(got, tc.want) {
				t.Errorf("StringToBytes(%q) = % x, want % x", tc.in, got, tc.want)
			}
			if back := BytesToString(got); back != tc.in {
				t.Errorf("BytesToString(% x) = %q, want %q", got, back, tc.in)
			}
		})
	}
}

func BenchmarkEncodeString(b *testing.B) {
	in := []byte("Aeven Wanderer's Guild Hall")
	for i := 0; i < b.N; i++ {
		_ = EncodeString(in)
	}
}
