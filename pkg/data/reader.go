package data

import "bytes"

// Reader consumes typed fields from a PlainBuffer.
//
// Every read is bounds-checked: a read wider than Remaining fails with
// ErrOutOfBounds and leaves the position where it was, so callers can
// try an alternative layout.
//
// In chunked reading mode the readable region ends at the next BreakByte;
// NextChunk moves past it.
type Reader struct {
	data PlainBuffer
	pos  int

	chunked   bool
	nextBreak int
}

// NewReader creates a reader positioned at the start of buf.
func NewReader(buf PlainBuffer) *Reader {
	return &Reader{data: buf, nextBreak: -1}
}

// Len returns the total length of the underlying buffer.
func (r *Reader) Len() int {
	return len(r.data)
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// Remaining returns the number of readable bytes: up to the buffer end, or
// up to the next break in chunked reading mode.
func (r *Reader) Remaining() int {
	limit := len(r.data)
	if r.chunked {
		limit = r.nextBreak
	}
	if r.pos >= limit {
		return 0
	}
	return limit - r.pos
}

// ChunkedReadingMode reports whether chunked reading mode is enabled.
func (r *Reader) ChunkedReadingMode() bool {
	return r.chunked
}

// SetChunkedReadingMode toggles chunked reading mode. Enabling it bounds
// reads by the next break at or after the current position.
func (r *Reader) SetChunkedReadingMode(enabled bool) {
	r.chunked = enabled
	if enabled {
		r.nextBreak = r.findNextBreak(r.pos)
	}
}

// NextChunk moves to the first byte after the current chunk's break.
func (r *Reader) NextChunk() error {
	if !r.chunked {
		return ErrChunkedReadingDisabled
	}
	pos := r.nextBreak
	if pos < len(r.data) {
		pos++
	}
	r.pos = pos
	r.nextBreak = r.findNextBreak(pos)
	return nil
}

func (r *Reader) findNextBreak(from int) int {
	if from >= len(r.data) {
		return len(r.data)
	}
	if i := bytes.IndexByte(r.data[from:], BreakByte); i >= 0 {
		return from + i
	}
	return len(r.data)
}

// take returns the next n readable bytes and advances past them.
func (r *Reader) take(op string, n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, outOfBounds(op, r.pos, n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Peek returns a copy of the next n readable bytes without advancing.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, outOfBounds("Peek", r.pos, n, r.Remaining())
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	return out, nil
}

// PeekByte returns the next byte without advancing. It ignores chunk
// bounds so callers can look at a pending break.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, outOfBounds("PeekByte", r.pos, 1, 0)
	}
	return r.data[r.pos], nil
}

// GetByte reads one raw byte.
func (r *Reader) GetByte() (byte, error) {
	b, err := r.take("GetByte", 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// GetBytes reads n raw bytes. The result is a copy.
func (r *Reader) GetBytes(n int) ([]byte, error) {
	b, err := r.take("GetBytes", n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// GetNumber reads and decodes a number of the given width.
func (r *Reader) GetNumber(width Width) (int, error) {
	if width < Width1 || width > Width4 {
		return 0, &RangeError{Width: width}
	}
	b, err := r.take("GetNumber", int(width))
	if err != nil {
		return 0, err
	}
	return DecodeNumber(b), nil
}

// GetChar reads a 1-byte number.
func (r *Reader) GetChar() (int, error) { return r.GetNumber(Width1) }

// GetShort reads a 2-byte number.
func (r *Reader) GetShort() (int, error) { return r.GetNumber(Width2) }

// GetThree reads a 3-byte number.
func (r *Reader) GetThree() (int, error) { return r.GetNumber(Width3) }

// GetInt reads a 4-byte number.
func (r *Reader) GetInt() (int, error) { return r.GetNumber(Width4) }

// GetBool reads a char-encoded boolean. A decoded value of zero is false
// and anything else is true. A break byte is malformed.
func (r *Reader) GetBool() (bool, error) {
	if r.Remaining() < 1 {
		return false, outOfBounds("GetBool", r.pos, 1, r.Remaining())
	}
	b := r.data[r.pos]
	if b == BreakByte {
		return false, malformed("GetBool", r.pos)
	}
	r.pos++
	return DecodeNumber([]byte{b}) != 0, nil
}

// GetFixedString reads length raw bytes as a Windows-1252 string.
func (r *Reader) GetFixedString(length int) (string, error) {
	b, err := r.take("GetFixedString", length)
	if err != nil {
		return "", err
	}
	return BytesToString(b), nil
}

// GetString reads the rest of the current chunk, or of the buffer when not
// in chunked reading mode, as a Windows-1252 string.
func (r *Reader) GetString() (string, error) {
	return r.GetFixedString(r.Remaining())
}

// GetFixedEncodedString reads length bytes, reverses the string transform
// and drops any break padding.
func (r *Reader) GetFixedEncodedString(length int) (string, error) {
	b, err := r.take("GetFixedEncodedString", length)
	if err != nil {
		return "", err
	}
	decoded := DecodeString(b)
	if i := bytes.IndexByte(decoded, BreakByte); i >= 0 {
		decoded = decoded[:i]
	}
	return BytesToString(decoded), nil
}

// GetEncodedString reads the rest of the current chunk or buffer as an
// encoded string.
func (r *Reader) GetEncodedString() (string, error) {
	return r.GetFixedEncodedString(r.Remaining())
}

// ReadToChunkEnd returns the bytes from the current position up to, not
// including, the next break byte or the buffer end. The break is left for
// SkipBreak.
func (r *Reader) ReadToChunkEnd() ([]byte, error) {
	end := r.findNextBreak(r.pos)
	return r.GetBytes(end - r.pos)
}

// SkipBreak consumes exactly one break byte.
func (r *Reader) SkipBreak() error {
	if r.pos >= len(r.data) {
		return outOfBounds("SkipBreak", r.pos, 1, 0)
	}
	if r.data[r.pos] != BreakByte {
		return malformed("SkipBreak", r.pos)
	}
	r.pos++
	if r.chunked {
		r.nextBreak = r.findNextBreak(r.pos)
	}
	return nil
}

// ReadRemaining returns a copy of every byte from the position to the end
// of the buffer, ignoring chunk bounds, and moves to the end.
func (r *Reader) ReadRemaining() []byte {
	out := make([]byte, len(r.data)-r.pos)
	copy(out, r.data[r.pos:])
	r.pos = len(r.data)
	if r.chunked {
		r.nextBreak = r.pos
	}
	return out
}
