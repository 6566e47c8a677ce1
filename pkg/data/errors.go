package data

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the codec. All of them are recoverable by the
// immediate caller; wrap-checks should use errors.Is.
var (
	ErrOutOfBounds            = errors.New("data: read out of bounds")
	ErrMalformed              = errors.New("data: malformed data")
	ErrEncodingRange          = errors.New("data: value outside encoding range")
	ErrChunkedReadingDisabled = errors.New("data: chunked reading mode is disabled")
	ErrWriterFinished         = errors.New("data: writer already finished")
)

// ReadError describes a failed read. The reader position is unchanged
// when one of these is returned.
type ReadError struct {
	Op        string // reader method, e.g. "GetShort"
	Pos       int    // cursor position at the time of the call
	Want      int    // bytes requested
	Available int    // bytes that were readable
	Err       error  // ErrOutOfBounds or ErrMalformed
}

func (e *ReadError) Error() string {
	if errors.Is(e.Err, ErrMalformed) {
		return fmt.Sprintf("%s at %d: %v", e.Op, e.Pos, e.Err)
	}
	return fmt.Sprintf("%s at %d: want %d bytes, have %d: %v", e.Op, e.Pos, e.Want, e.Available, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// RangeError reports a number that does not fit the chosen field width.
type RangeError struct {
	Value int
	Width Width
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %d does not fit a %d-byte field (max %d)",
		ErrEncodingRange, e.Value, e.Width, MaxValue(e.Width))
}

func (e *RangeError) Unwrap() error { return ErrEncodingRange }

func outOfBounds(op string, pos, want, available int) error {
	return &ReadError{Op: op, Pos: pos, Want: want, Available: available, Err: ErrOutOfBounds}
}

func malformed(op string, pos int) error {
	return &ReadError{Op: op, Pos: pos, Want: 1, Err: ErrMalformed}
}

// LengthError reports a fixed-length string field whose content does not
// fit.
type LengthError struct {
	Length int
	Want   int
	Padded bool
}

func (e *LengthError) Error() string {
	if e.Padded {
		return fmt.Sprintf("%v: string of %d bytes exceeds field of %d", ErrEncodingRange, e.Length, e.Want)
	}
	return fmt.Sprintf("%v: string of %d bytes does not match field of %d", ErrEncodingRange, e.Length, e.Want)
}

func (e *LengthError) Unwrap() error { return ErrEncodingRange }
