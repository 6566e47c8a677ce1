package encrypt

// Interleave takes bytes alternately from the front and the back of b:
// "abcde" becomes "aebdc". The input is not modified.
func Interleave(b []byte) []byte {
	n := len(b)
	out := make([]byte, n)
	for i := 0; i < (n+1)/2; i++ {
		out[i*2] = b[i]
	}
	for i := 0; i < n/2; i++ {
		out[i*2+1] = b[n-1-i]
	}
	return out
}

// Deinterleave is the inverse of Interleave: even-indexed bytes in order,
// followed by the odd-indexed bytes reversed.
func Deinterleave(b []byte) []byte {
	n := len(b)
	out := make([]byte, n)
	for i := 0; i < (n+1)/2; i++ {
		out[i] = b[i*2]
	}
	for i := 0; i < n/2; i++ {
		out[n-1-i] = b[i*2+1]
	}
	return out
}

// FlipMSB toggles the high bit of every byte except 0x00 and 0x80.
// It is its own inverse.
func FlipMSB(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c&0x7F != 0 {
			c ^= 0x80
		}
		out[i] = c
	}
	return out
}

// SwapMultiples reverses every run of two or more consecutive bytes that
// are multiples of multiple. A multiple of zero (or less) leaves the bytes
// as they are. It is its own inverse.
func SwapMultiples(b []byte, multiple int) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	if multiple <= 0 {
		return out
	}

	for start := 0; start < len(out); {
		if int(out[start])%multiple != 0 {
			start++
			continue
		}
		end := start
		for end < len(out) && int(out[end])%multiple == 0 {
			end++
		}
		for i, j := start, end-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		start = end
	}
	return out
}
