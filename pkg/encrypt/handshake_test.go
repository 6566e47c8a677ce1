package encrypt

import "testing"

func TestServerVerificationHash(t *testing.T) {
	tests := []struct {
		challenge int
		want      int
	}{
		{123456, 300733},
	}
	for _, tc := range tests {
		if got := ServerVerificationHash(tc.challenge); got != tc.want {
			t.Errorf("ServerVerificationHash(%d) = %d, want %d", tc.challenge, got, tc.want)
		}
	}
}

func TestGenerateSwapMultiple(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		m := GenerateSwapMultiple()
		if m < MinSwapMultiple || m > MaxSwapMultiple {
			t.Fatalf("GenerateSwapMultiple() = %d, want %d..%d", m, MinSwapMultiple, MaxSwapMultiple)
		}
		seen[m] = true
	}
	if len(seen) != MaxSwapMultiple-MinSwapMultiple+1 {
		t.Errorf("saw %d distinct multiples in 2000 draws, want %d", len(seen), MaxSwapMultiple-MinSwapMultiple+1)
	}
}
