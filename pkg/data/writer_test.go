package data

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterFields(t *testing.T) {
	w := NewWriterWithCapacity(32)
	steps := []func() error{
		func() error { return w.AddChar(42) },
		func() error { return w.AddShort(533) },
		func() error { return w.AddThree(888888) },
		func() error { return w.AddInt(18994242) },
		func() error { return w.AddBool(true) },
		func() error { return w.AddBool(false) },
		func() error { return w.AddBreak() },
		func() error { return w.AddString("ok") },
		func() error { return w.AddPadding(2) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	got, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	want := PlainBuffer{
		43,
		28, 3,
		100, 225, 14,
		15, 189, 44, 2,
		2, 1,
		BreakByte,
		'o', 'k',
		0, 0,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Finish() = % x\nwant      % x", got, want)
	}
}

func TestWriterRangeErrorAppendsNothing(t *testing.T) {
	w := NewWriter()
	if err := w.AddChar(CharMax); !errors.Is(err, ErrEncodingRange) {
		t.Fatalf("AddChar(%d) error = %v, want ErrEncodingRange", CharMax, err)
	}
	if err := w.AddShort(-5); !errors.Is(err, ErrEncodingRange) {
		t.Fatalf("AddShort(-5) error = %v, want ErrEncodingRange", err)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d after failed writes, want 0", w.Len())
	}
}

func TestWriterFinishAndReset(t *testing.T) {
	w := NewWriter()
	empty, err := w.Finish()
	if err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Finish() on empty writer = %#v, want empty non-nil buffer", empty)
	}

	if err := w.AddByte(1); !errors.Is(err, ErrWriterFinished) {
		t.Errorf("AddByte after Finish error = %v, want ErrWriterFinished", err)
	}
	if _, err := w.Finish(); !errors.Is(err, ErrWriterFinished) {
		t.Errorf("second Finish error = %v, want ErrWriterFinished", err)
	}

	w.Reset()
	if err := w.AddByte(7); err != nil {
		t.Fatalf("AddByte after Reset error: %v", err)
	}
	got, err := w.Finish()
	if err != nil || !bytes.Equal(got, []byte{7}) {
		t.Errorf("Finish() after Reset = % x, %v, want 07", got, err)
	}
}

func TestWriterFinishTransfersOwnership(t *testing.T) {
	w := NewWriter()
	_ = w.AddBytes([]byte{1, 2, 3})
	first, _ := w.Finish()

	w.Reset()
	_ = w.AddBytes([]byte{9, 9, 9})
	_, _ = w.Finish()

	if !bytes.Equal(first, []byte{1, 2, 3}) {
		t.Errorf("first buffer changed to % x after writer reuse", first)
	}
}

func TestWriterSanitization(t *testing.T) {
	tests := []struct {
		name     string
		sanitize bool
		want     []byte
	}{
		{"off", false, []byte{'a', 0xFF, 'b'}},
		{"on", true, []byte{'a', 'y', 'b'}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter()
			w.SetStringSanitizationMode(tc.sanitize)
			if w.StringSanitizationMode() != tc.sanitize {
				t.Fatalf("StringSanitizationMode() = %v, want %v", w.StringSanitizationMode(), tc.sanitize)
			}
			if err := w.AddString("aÿb"); err != nil {
				t.Fatalf("AddString error: %v", err)
			}
			got, _ := w.Finish()
			if !bytes.Equal(got, tc.want) {
				t.Errorf("AddString(%q) = % x, want % x", "aÿb", got, tc.want)
			}
		})
	}
}

func TestWriterSanitizationLeavesRawBytes(t *testing.T) {
	w := NewWriter()
	w.SetStringSanitizationMode(true)
	_ = w.AddBreak()
	_ = w.AddByte(0xFF)
	got, _ := w.Finish()
	if !bytes.Equal(got, []byte{0xFF, 0xFF}) {
		t.Errorf("raw writes = % x, want ff ff", got)
	}
}

func TestWriterFixedString(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		length  int
		padded  bool
		want    []byte
		wantErr bool
	}{
		{"exact", "abc", 3, false, []byte("abc"), false},
		{"padded", "ab", 4, true, []byte{'a', 'b', 0xFF, 0xFF}, false},
		{"short_unpadded", "ab", 4, false, nil, true},
		{"too_long", "abcde", 4, true, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := NewWriter()
			err := w.AddFixedString(tc.in, tc.length, tc.padded)
			if tc.wantErr {
				if !errors.Is(err, ErrEncodingRange) {
					t.Fatalf("AddFixedString error = %v, want ErrEncodingRange", err)
				}
				if w.Len() != 0 {
					t.Errorf("Len() = %d after failed write, want 0", w.Len())
				}
				return
			}
			if err != nil {
				t.Fatalf("AddFixedString error: %v", err)
			}
			got, _ := w.Finish()
			if !bytes.Equal(got, tc.want) {
				t.Errorf("AddFixedString(%q, %d, %v) = % x, want % x", tc.in, tc.length, tc.padded, got, tc.want)
			}
		})
	}
}

func TestWriterEncodedString(t *testing.T) {
	w := NewWriter()
	if err := w.AddEncodedString("Void"); err != nil {
		t.Fatalf("AddEncodedString error: %v", err)
	}
	got, _ := w.Finish()
	want := []byte{0x69, 0x36, 0x5E, 0x49}
	if !bytes.Equal(got, want) {
		t.Errorf("AddEncodedString(%q) = % x, want % x", "Void", got, want)
	}
}

type testRecord struct {
	ID    int
	Name  string
	Flag  bool
	Items []int
}

func (r *testRecord) Serialize(w *Writer) error {
	if err := w.AddShort(r.ID); err != nil {
		return err
	}
	if err := w.AddBool(r.Flag); err != nil {
		return err
	}
	if err := w.AddString(r.Name); err != nil {
		return err
	}
	if err := w.AddBreak(); err != nil {
		return err
	}
	for _, it := range r.Items {
		if err := w.AddChar(it); err != nil {
			return err
		}
	}
	return nil
}

func (r *testRecord) Deserialize(rd *Reader) error {
	var err error
	if r.ID, err = rd.GetShort(); err != nil {
		return err
	}
	if r.Flag, err = rd.GetBool(); err != nil {
		return err
	}
	rd.SetChunkedReadingMode(true)
	if r.Name, err = rd.GetString(); err != nil {
		return err
	}
	if err = rd.NextChunk(); err != nil {
		return err
	}
	r.Items = r.Items[:0]
	for rd.Remaining() > 0 {
		v, err := rd.GetChar()
		if err != nil {
			return err
		}
		r.Items = append(r.Items, v)
	}
	return nil
}

func TestMarshalUnmarshal(t *testing.T) {
	in := &testRecord{ID: 1234, Name: "Wanderer", Flag: true, Items: []int{1, 2, 250}}
	buf, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var out testRecord
	if err := Unmarshal(buf, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if out.ID != in.ID || out.Name != in.Name || out.Flag != in.Flag || len(out.Items) != len(in.Items) {
		t.Fatalf("Unmarshal = %+v, want %+v", out, *in)
	}
	for i := range in.Items {
		if out.Items[i] != in.Items[i] {
			t.Errorf("Items[%d] = %d, want %d", i, out.Items[i], in.Items[i])
		}
	}
}
