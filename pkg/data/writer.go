package data

// Writer appends typed fields to a growing buffer.
//
// Writes are never bounds-limited. Number writes that do not fit their
// width fail with ErrEncodingRange and append nothing. Finish hands the
// buffer to the caller; the writer then refuses further use until Reset.
type Writer struct {
	buf      []byte
	finished bool
	sanitize bool
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{}
}

// NewWriterWithCapacity creates an empty writer with room for size bytes.
func NewWriterWithCapacity(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// StringSanitizationMode reports whether string sanitization is enabled.
func (w *Writer) StringSanitizationMode() bool {
	return w.sanitize
}

// SetStringSanitizationMode toggles string sanitization. When enabled,
// break bytes inside string content are written as 'y' so that a string
// can never end a chunk early.
func (w *Writer) SetStringSanitizationMode(enabled bool) {
	w.sanitize = enabled
}

// AddByte appends one raw byte.
func (w *Writer) AddByte(b byte) error {
	if w.finished {
		return ErrWriterFinished
	}
	w.buf = append(w.buf, b)
	return nil
}

// AddBytes appends raw bytes.
func (w *Writer) AddBytes(b []byte) error {
	if w.finished {
		return ErrWriterFinished
	}
	w.buf = append(w.buf, b...)
	return nil
}

// AddNumber appends value encoded in width bytes.
func (w *Writer) AddNumber(value int, width Width) error {
	if w.finished {
		return ErrWriterFinished
	}
	encoded, err := EncodeNumber(value, width)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, encoded...)
	return nil
}

// AddChar appends a 1-byte number.
func (w *Writer) AddChar(value int) error { return w.AddNumber(value, Width1) }

// AddShort appends a 2-byte number.
func (w *Writer) AddShort(value int) error { return w.AddNumber(value, Width2) }

// AddThree appends a 3-byte number.
func (w *Writer) AddThree(value int) error { return w.AddNumber(value, Width3) }

// AddInt appends a 4-byte number.
func (w *Writer) AddInt(value int) error { return w.AddNumber(value, Width4) }

// AddBool appends a char-encoded boolean: 1 for true, 0 for false.
func (w *Writer) AddBool(v bool) error {
	if v {
		return w.AddChar(1)
	}
	return w.AddChar(0)
}

// AddBreak appends the chunk break byte.
func (w *Writer) AddBreak() error {
	return w.AddByte(BreakByte)
}

// AddPadding appends n zero bytes.
func (w *Writer) AddPadding(n int) error {
	if w.finished {
		return ErrWriterFinished
	}
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
	return nil
}

// AddString appends s as Windows-1252 bytes.
func (w *Writer) AddString(s string) error {
	if w.finished {
		return ErrWriterFinished
	}
	w.buf = append(w.buf, w.stringBytes(s)...)
	return nil
}

// AddFixedString appends s as exactly length bytes. When padded is set,
// shorter strings are filled with break bytes; otherwise the string must
// already have the exact length.
func (w *Writer) AddFixedString(s string, length int, padded bool) error {
	if w.finished {
		return ErrWriterFinished
	}
	b, err := fixedLength(w.stringBytes(s), length, padded)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, b...)
	return nil
}

// AddEncodedString appends s run through the string transform.
func (w *Writer) AddEncodedString(s string) error {
	if w.finished {
		return ErrWriterFinished
	}
	w.buf = append(w.buf, EncodeString(w.stringBytes(s))...)
	return nil
}

// AddFixedEncodedString pads or checks s like AddFixedString, then applies
// the string transform to the whole field.
func (w *Writer) AddFixedEncodedString(s string, length int, padded bool) error {
	if w.finished {
		return ErrWriterFinished
	}
	b, err := fixedLength(w.stringBytes(s), length, padded)
	if err != nil {
		return err
	}
	w.buf = append(w.buf, EncodeString(b)...)
	return nil
}

// Finish returns the written bytes and transfers their ownership to the
// caller. The writer must be Reset before it can be used again.
func (w *Writer) Finish() (PlainBuffer, error) {
	if w.finished {
		return nil, ErrWriterFinished
	}
	out := PlainBuffer(w.buf)
	if out == nil {
		out = PlainBuffer{}
	}
	w.buf = nil
	w.finished = true
	return out, nil
}

// Reset returns the writer to its initial empty state with a fresh buffer.
func (w *Writer) Reset() {
	w.buf = nil
	w.finished = false
}

func (w *Writer) stringBytes(s string) []byte {
	b := StringToBytes(s)
	if w.sanitize {
		for i, c := range b {
			if c == BreakByte {
				b[i] = 'y'
			}
		}
	}
	return b
}

func fixedLength(b []byte, length int, padded bool) ([]byte, error) {
	switch {
	case len(b) == length:
		return b, nil
	case len(b) < length && padded:
		out := make([]byte, length)
		copy(out, b)
		for i := len(b); i < length; i++ {
			out[i] = BreakByte
		}
		return out, nil
	default:
		return nil, &LengthError{Length: len(b), Want: length, Padded: padded}
	}
}
