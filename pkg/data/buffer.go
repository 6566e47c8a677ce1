package data

// PlainBuffer is a decrypted packet or file payload. Reader consumes one
// and Writer produces one. Wire bytes use encrypt.RawBuffer instead, and
// the encrypt pipelines are the only conversions between the two.
type PlainBuffer []byte

// Clone returns an independent copy of the buffer.
func (b PlainBuffer) Clone() PlainBuffer {
	if b == nil {
		return nil
	}
	out := make(PlainBuffer, len(b))
	copy(out, b)
	return out
}

// Serializer is implemented by packet and file record types that know how
// to write themselves field by field.
type Serializer interface {
	Serialize(w *Writer) error
}

// Deserializer is implemented by packet and file record types that know
// how to read themselves field by field.
type Deserializer interface {
	Deserialize(r *Reader) error
}

// Marshal serializes v into a finished plain buffer.
func Marshal(v Serializer) (PlainBuffer, error) {
	w := NewWriter()
	if err := v.Serialize(w); err != nil {
		return nil, err
	}
	return w.Finish()
}

// Unmarshal reads v from buf.
func Unmarshal(buf PlainBuffer, v Deserializer) error {
	return v.Deserialize(NewReader(buf))
}
